package api

import (
	"errors"
	"net/http"

	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/docmem/docmem/pkg/crypto"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler is user administration: create, list, deactivate, role
// assignment. Routes are gated by the global users permissions.
type UserHandler struct {
	db *database.Database
}

func NewUserHandler(db *database.Database) *UserHandler {
	return &UserHandler{db: db}
}

type CreateUserRequest struct {
	Email    string   `json:"email" binding:"required,email"`
	Name     string   `json:"name"`
	Password string   `json:"password" binding:"required,min=8"`
	RoleIDs  []string `json:"role_ids"`
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	var users []models.User
	if err := h.db.Preload("Roles").Order("email").Find(&users).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	respondData(c, http.StatusOK, users)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.db.FindUserByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}
	respondData(c, http.StatusOK, user)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid user payload")
		return
	}

	var existing models.User
	err := h.db.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		respondError(c, http.StatusConflict, "A user with this email already exists")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, http.StatusInternalServerError, "Failed to check email")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := models.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := h.db.Create(&user).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	for _, roleID := range req.RoleIDs {
		if err := h.db.AssignRole(user.ID, roleID); err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to assign role")
			return
		}
	}

	created, err := h.db.FindUserByID(user.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load user")
		return
	}
	respondData(c, http.StatusCreated, created)
}

// DeactivateUser disables the account instead of deleting it; every token
// the user owns stops validating on the next request.
func (h *UserHandler) DeactivateUser(c *gin.Context) {
	user, err := h.db.FindUserByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	if err := h.db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to deactivate user")
		return
	}

	respondMessage(c, http.StatusOK, "User deactivated")
}

func (h *UserHandler) AssignUserRole(c *gin.Context) {
	userID := c.Param("id")
	roleID := c.Param("roleId")

	if _, err := h.db.FindUserByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	var role models.Role
	if err := h.db.First(&role, "id = ?", roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Role not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch role")
		return
	}

	if err := h.db.AssignRole(userID, roleID); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to assign role")
		return
	}

	respondMessage(c, http.StatusOK, "Role assigned")
}

func (h *UserHandler) RemoveUserRole(c *gin.Context) {
	if err := h.db.RemoveRole(c.Param("id"), c.Param("roleId")); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to remove role")
		return
	}
	respondMessage(c, http.StatusOK, "Role removed")
}
