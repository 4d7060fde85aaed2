package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RoleHandler is the administrative CRUD surface over roles. Every route is
// mounted behind the admin-only gateway.
type RoleHandler struct {
	db *database.Database
}

func NewRoleHandler(db *database.Database) *RoleHandler {
	return &RoleHandler{db: db}
}

type CreateRoleRequest struct {
	Name        string             `json:"name" binding:"required"`
	Description string             `json:"description"`
	Permissions models.Permissions `json:"permissions"`
	IsSystem    bool               `json:"is_system"`
}

type UpdateRoleRequest struct {
	Name        *string             `json:"name"`
	Description *string             `json:"description"`
	Permissions *models.Permissions `json:"permissions"`
}

type roleWithUsage struct {
	models.Role
	UserCount  int64 `json:"user_count"`
	TokenCount int64 `json:"token_count"`
}

func (h *RoleHandler) withUsage(role models.Role) (roleWithUsage, error) {
	users, tokens, err := h.db.RoleUsage(role.ID)
	if err != nil {
		return roleWithUsage{}, err
	}
	return roleWithUsage{Role: role, UserCount: users, TokenCount: tokens}, nil
}

// ListRoles returns every role annotated with usage counts.
func (h *RoleHandler) ListRoles(c *gin.Context) {
	var roles []models.Role
	if err := h.db.Order("name").Find(&roles).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch roles")
		return
	}

	response := make([]roleWithUsage, 0, len(roles))
	for _, role := range roles {
		annotated, err := h.withUsage(role)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to count role usage")
			return
		}
		response = append(response, annotated)
	}

	respondData(c, http.StatusOK, response)
}

// GetRole returns one role with usage counts.
func (h *RoleHandler) GetRole(c *gin.Context) {
	var role models.Role
	if err := h.db.First(&role, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Role not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch role")
		return
	}

	annotated, err := h.withUsage(role)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to count role usage")
		return
	}
	respondData(c, http.StatusOK, annotated)
}

// CreateRole creates a role. Names are globally unique, case-sensitive.
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid role payload")
		return
	}

	var existing models.Role
	err := h.db.Where("name = ?", req.Name).First(&existing).Error
	if err == nil {
		respondError(c, http.StatusConflict, "A role with this name already exists")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, http.StatusInternalServerError, "Failed to check role name")
		return
	}

	role := models.Role{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
		IsSystem:    req.IsSystem,
	}
	if err := h.db.Create(&role).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create role")
		return
	}

	respondData(c, http.StatusCreated, role)
}

// UpdateRole merges the provided fields into a non-system role.
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	var role models.Role
	if err := h.db.First(&role, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Role not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch role")
		return
	}

	if role.IsSystem {
		respondError(c, http.StatusForbidden, "Cannot modify system roles")
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid role payload")
		return
	}

	if req.Name != nil && *req.Name != role.Name {
		var existing models.Role
		err := h.db.Where("name = ?", *req.Name).First(&existing).Error
		if err == nil {
			respondError(c, http.StatusConflict, "A role with this name already exists")
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusInternalServerError, "Failed to check role name")
			return
		}
		role.Name = *req.Name
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	if req.Permissions != nil {
		role.Permissions = *req.Permissions
	}

	if err := h.db.Save(&role).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update role")
		return
	}

	respondData(c, http.StatusOK, role)
}

// DeleteRole removes a role that is neither a system role nor referenced by
// any user or token.
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	var role models.Role
	if err := h.db.First(&role, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Role not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch role")
		return
	}

	if role.IsSystem {
		respondError(c, http.StatusForbidden, "Cannot delete system roles")
		return
	}

	users, tokens, err := h.db.RoleUsage(role.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to count role usage")
		return
	}
	if users > 0 || tokens > 0 {
		respondError(c, http.StatusBadRequest,
			fmt.Sprintf("Role is in use by %d user(s) and %d token(s)", users, tokens))
		return
	}

	if err := h.db.Delete(&role).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete role")
		return
	}

	respondMessage(c, http.StatusOK, "Role deleted")
}
