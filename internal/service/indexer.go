package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/docmem/docmem/pkg/embeddings"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	indexQueueSize = 1000
	maxIndexRetry  = 3
)

type indexJob struct {
	documentID string
	retry      int
}

// Indexer embeds documents and stores their vectors in the background, so
// write endpoints never block on the embedding provider.
type Indexer struct {
	db       *database.Database
	provider embeddings.Provider
	log      *logrus.Logger

	jobs    chan indexJob
	workers int
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewIndexer(db *database.Database, provider embeddings.Provider, workers int, log *logrus.Logger) *Indexer {
	if workers <= 0 {
		workers = 3
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Indexer{
		db:       db,
		provider: provider,
		log:      log,
		jobs:     make(chan indexJob, indexQueueSize),
		workers:  workers,
	}
}

func (ix *Indexer) Start() {
	ix.mu.Lock()
	if ix.running {
		ix.mu.Unlock()
		return
	}
	ix.running = true
	ix.mu.Unlock()

	for i := 0; i < ix.workers; i++ {
		ix.wg.Add(1)
		go ix.worker()
	}
	ix.log.WithField("workers", ix.workers).Info("document indexer started")
}

func (ix *Indexer) Stop() {
	ix.mu.Lock()
	if !ix.running {
		ix.mu.Unlock()
		return
	}
	ix.running = false
	close(ix.jobs)
	ix.mu.Unlock()

	ix.wg.Wait()
	ix.log.Info("document indexer stopped")
}

// Queue schedules a document for (re)indexing. When the queue is full the
// job is dropped and logged; a reindex endpoint can recover it later.
func (ix *Indexer) Queue(documentID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.running {
		return
	}

	select {
	case ix.jobs <- indexJob{documentID: documentID}:
	default:
		ix.log.WithField("document_id", documentID).Warn("index queue full, dropping job")
	}
}

// QueueBatch schedules many documents.
func (ix *Indexer) QueueBatch(documentIDs []string) {
	for _, id := range documentIDs {
		ix.Queue(id)
	}
}

func (ix *Indexer) worker() {
	defer ix.wg.Done()
	for job := range ix.jobs {
		ix.process(job)
	}
}

func (ix *Indexer) process(job indexJob) {
	err := ix.Index(job.documentID)
	if err == nil {
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Deleted before the job ran
		return
	}

	ix.log.WithError(err).WithField("document_id", job.documentID).Warn("failed to index document")

	if job.retry < maxIndexRetry {
		job.retry++
		time.Sleep(time.Second * time.Duration(job.retry))

		// Re-enqueue under the lock so the send cannot race Stop
		// closing the channel.
		ix.mu.Lock()
		if ix.running {
			select {
			case ix.jobs <- job:
			default:
			}
		}
		ix.mu.Unlock()
	}
}

// Index embeds one document synchronously and stores its vector.
func (ix *Indexer) Index(documentID string) error {
	var doc models.Document
	if err := ix.db.First(&doc, "id = ?", documentID).Error; err != nil {
		return err
	}

	text := doc.Title
	if doc.Content != "" {
		text += "\n" + doc.Content
	}

	vector, err := ix.provider.Embed(text)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	if err := ix.db.StoreDocumentVector(doc.ID, vector); err != nil {
		return fmt.Errorf("vector store failed: %w", err)
	}

	now := time.Now()
	return ix.db.Model(&models.Document{}).
		Where("id = ?", doc.ID).
		Update("indexed_at", now).Error
}

// Search embeds the query and returns the closest documents.
func (ix *Indexer) Search(query string, limit int) ([]database.DocumentMatch, error) {
	vector, err := ix.provider.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	return ix.db.SearchSimilarDocuments(vector, limit)
}
