package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// InitializeVectorExtension loads sqlite-vec and creates the virtual table
// backing document similarity search.
func InitializeVectorExtension(db *sql.DB) error {
	_, err := db.Exec("SELECT load_extension('vec0', 'sqlite3_vec_init')")
	if err != nil {
		// The static build registers the extension at link time
		_, err = db.Exec("SELECT vec_version()")
		if err != nil {
			return fmt.Errorf("failed to load sqlite-vec extension: %w", err)
		}
	}

	_, err = db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS document_vectors USING vec0(
		document_id TEXT PRIMARY KEY,
		embedding FLOAT[384]
	)`)
	if err != nil {
		return fmt.Errorf("failed to create document vector table: %w", err)
	}

	return nil
}

// StoreDocumentVector upserts the embedding for a document. The vector is
// passed as a JSON array, which sqlite-vec accepts as a float32 vector.
func (db *Database) StoreDocumentVector(documentID string, vector []float32) error {
	encoded, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}

	tx := db.Begin()
	defer tx.Rollback()

	if err := tx.Exec(`DELETE FROM document_vectors WHERE document_id = ?`, documentID).Error; err != nil {
		return err
	}
	if err := tx.Exec(
		`INSERT INTO document_vectors(document_id, embedding) VALUES (?, ?)`,
		documentID, string(encoded),
	).Error; err != nil {
		return err
	}

	return tx.Commit().Error
}

// DeleteDocumentVector removes a document's embedding, if any.
func (db *Database) DeleteDocumentVector(documentID string) error {
	return db.Exec(`DELETE FROM document_vectors WHERE document_id = ?`, documentID).Error
}

// DocumentMatch is one similarity search hit; smaller distance is closer.
type DocumentMatch struct {
	DocumentID string  `json:"document_id"`
	Distance   float64 `json:"distance"`
}

// SearchSimilarDocuments returns the documents closest to the query vector
// by cosine distance.
func (db *Database) SearchSimilarDocuments(queryVector []float32, limit int) ([]DocumentMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	encoded, err := json.Marshal(queryVector)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query vector: %w", err)
	}

	var matches []DocumentMatch
	err = db.Raw(`
		SELECT
			document_id,
			vec_distance_cosine(embedding, ?) AS distance
		FROM document_vectors
		ORDER BY distance
		LIMIT ?
	`, string(encoded), limit).Scan(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return matches, nil
}
