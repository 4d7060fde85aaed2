package api

import (
	"errors"
	"net/http"

	"github.com/docmem/docmem/internal/auth"
	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ProjectHandler struct {
	db *database.Database
}

func NewProjectHandler(db *database.Database) *ProjectHandler {
	return &ProjectHandler{db: db}
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// ListProjects filters the listing to the caller's readable scope up front
// instead of checking each row.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	access := auth.AccessibleProjects(auth.UserFromContext(c))

	q := h.db.Model(&models.Project{}).Order("name")
	if !access.All {
		q = q.Where("id IN ?", access.IDs)
	}

	var projects []models.Project
	if err := q.Find(&projects).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch projects")
		return
	}
	respondData(c, http.StatusOK, projects)
}

// CreateProject requires the all-projects write grant or admin.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	if !auth.CanCreateProjects(auth.UserFromContext(c)) {
		respondError(c, http.StatusForbidden, "Insufficient permissions")
		return
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid project payload")
		return
	}

	var existing models.Project
	err := h.db.Where("name = ?", req.Name).First(&existing).Error
	if err == nil {
		respondError(c, http.StatusConflict, "A project with this name already exists")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, http.StatusInternalServerError, "Failed to check project name")
		return
	}

	project := models.Project{Name: req.Name, Description: req.Description}
	if err := h.db.Create(&project).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create project")
		return
	}

	respondData(c, http.StatusCreated, project)
}

func (h *ProjectHandler) loadProject(c *gin.Context) (*models.Project, bool) {
	var project models.Project
	if err := h.db.First(&project, "id = ?", c.Param("project")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Project not found")
			return nil, false
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch project")
		return nil, false
	}
	return &project, true
}

func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}
	respondData(c, http.StatusOK, project)
}

func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid project payload")
		return
	}

	if req.Name != nil && *req.Name != project.Name {
		var existing models.Project
		err := h.db.Where("name = ?", *req.Name).First(&existing).Error
		if err == nil {
			respondError(c, http.StatusConflict, "A project with this name already exists")
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusInternalServerError, "Failed to check project name")
			return
		}
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}

	if err := h.db.Save(project).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update project")
		return
	}
	respondData(c, http.StatusOK, project)
}

func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	if err := h.db.Delete(project).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete project")
		return
	}
	respondMessage(c, http.StatusOK, "Project deleted")
}
