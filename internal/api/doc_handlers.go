package api

import (
	"errors"
	"net/http"

	"github.com/docmem/docmem/internal/auth"
	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/docmem/docmem/internal/service"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DocHandler serves the semantic memory itself: document CRUD, vector
// search, and reindexing. Routes are gated by the global docs permissions;
// listing narrows to the caller's readable projects.
type DocHandler struct {
	db      *database.Database
	indexer *service.Indexer
}

func NewDocHandler(db *database.Database, indexer *service.Indexer) *DocHandler {
	return &DocHandler{db: db, indexer: indexer}
}

type CreateDocumentRequest struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title" binding:"required"`
	Content   string `json:"content"`
	Source    string `json:"source"`
	Tags      string `json:"tags"`
}

type UpdateDocumentRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Source  *string `json:"source"`
	Tags    *string `json:"tags"`
}

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}

// scopeQuery narrows a document query to the projects the caller may read.
// Documents without a project id are visible to anyone with docs read.
func (h *DocHandler) scopeQuery(c *gin.Context, q *gorm.DB) *gorm.DB {
	access := auth.AccessibleProjects(auth.UserFromContext(c))
	if access.All {
		return q
	}
	return q.Where("project_id = '' OR project_id IS NULL OR project_id IN ?", access.IDs)
}

func (h *DocHandler) ListDocuments(c *gin.Context) {
	q := h.db.Model(&models.Document{}).Order("updated_at DESC")
	if projectID := c.Query("project_id"); projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	q = h.scopeQuery(c, q)

	var docs []models.Document
	if err := q.Find(&docs).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch documents")
		return
	}
	respondData(c, http.StatusOK, docs)
}

func (h *DocHandler) GetDocument(c *gin.Context) {
	var doc models.Document
	if err := h.db.First(&doc, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Document not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch document")
		return
	}
	respondData(c, http.StatusOK, doc)
}

func (h *DocHandler) CreateDocument(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid document payload")
		return
	}

	doc := models.Document{
		ProjectID: req.ProjectID,
		Title:     req.Title,
		Content:   req.Content,
		Source:    req.Source,
		Tags:      req.Tags,
	}
	if err := h.db.Create(&doc).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create document")
		return
	}

	h.indexer.Queue(doc.ID)
	respondData(c, http.StatusCreated, doc)
}

func (h *DocHandler) UpdateDocument(c *gin.Context) {
	var doc models.Document
	if err := h.db.First(&doc, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Document not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch document")
		return
	}

	var req UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid document payload")
		return
	}

	if req.Title != nil {
		doc.Title = *req.Title
	}
	if req.Content != nil {
		doc.Content = *req.Content
	}
	if req.Source != nil {
		doc.Source = *req.Source
	}
	if req.Tags != nil {
		doc.Tags = *req.Tags
	}

	if err := h.db.Save(&doc).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update document")
		return
	}

	h.indexer.Queue(doc.ID)
	respondData(c, http.StatusOK, doc)
}

func (h *DocHandler) DeleteDocument(c *gin.Context) {
	var doc models.Document
	if err := h.db.First(&doc, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Document not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch document")
		return
	}

	if err := h.db.Delete(&doc).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete document")
		return
	}
	if err := h.db.DeleteDocumentVector(doc.ID); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete document vector")
		return
	}

	respondMessage(c, http.StatusOK, "Document deleted")
}

// SearchDocuments runs vector similarity search over the caller's readable
// scope.
func (h *DocHandler) SearchDocuments(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid search payload")
		return
	}

	limit := req.Limit
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	matches, err := h.indexer.Search(req.Query, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Search failed")
		return
	}

	ids := make([]string, len(matches))
	distances := make(map[string]float64, len(matches))
	for i, m := range matches {
		ids[i] = m.DocumentID
		distances[m.DocumentID] = m.Distance
	}

	var docs []models.Document
	if len(ids) > 0 {
		q := h.scopeQuery(c, h.db.Model(&models.Document{}).Where("id IN ?", ids))
		if err := q.Find(&docs).Error; err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to fetch documents")
			return
		}
	}

	type scoredDocument struct {
		models.Document
		Distance float64 `json:"distance"`
	}
	results := make([]scoredDocument, 0, len(docs))
	for _, doc := range docs {
		results = append(results, scoredDocument{Document: doc, Distance: distances[doc.ID]})
	}

	respondData(c, http.StatusOK, results)
}

// ReindexDocument queues one document for re-embedding.
func (h *DocHandler) ReindexDocument(c *gin.Context) {
	var doc models.Document
	if err := h.db.First(&doc, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Document not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch document")
		return
	}

	h.indexer.Queue(doc.ID)
	respondMessage(c, http.StatusAccepted, "Document queued for indexing")
}

// ReindexAll queues every document for re-embedding.
func (h *DocHandler) ReindexAll(c *gin.Context) {
	var ids []string
	if err := h.db.Model(&models.Document{}).Pluck("id", &ids).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch documents")
		return
	}

	h.indexer.QueueBatch(ids)
	respondData(c, http.StatusAccepted, gin.H{"queued": len(ids)})
}
