package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/docmem/docmem/internal/auth"
	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type TokenHandler struct {
	db     *database.Database
	issuer *auth.Issuer
}

func NewTokenHandler(db *database.Database, issuer *auth.Issuer) *TokenHandler {
	return &TokenHandler{db: db, issuer: issuer}
}

type CreateTokenRequest struct {
	Name      string `json:"name"`
	RoleID    string `json:"role_id" binding:"required"`
	ExpiresIn int    `json:"expires_in"` // hours; 0 means no expiration
}

type tokenResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Token      string     `json:"token"` // masked, except at creation
	RoleID     string     `json:"role_id"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ListTokens lists the caller's own tokens with masked secrets.
func (h *TokenHandler) ListTokens(c *gin.Context) {
	user := auth.UserFromContext(c)

	var tokens []models.Token
	if err := h.db.Where("user_id = ?", user.UserID).Order("created_at DESC").Find(&tokens).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch tokens")
		return
	}

	response := make([]tokenResponse, len(tokens))
	for i, t := range tokens {
		response[i] = tokenResponse{
			ID:         t.ID,
			Name:       t.Name,
			Token:      t.Masked(),
			RoleID:     t.RoleID,
			ExpiresAt:  t.ExpiresAt,
			LastUsedAt: t.LastUsedAt,
			RevokedAt:  t.RevokedAt,
			CreatedAt:  t.CreatedAt,
		}
	}

	respondData(c, http.StatusOK, response)
}

// CreateToken issues a token for the caller bound to a role they hold.
// Admins may issue for any role. The plaintext secret appears in this
// response and nowhere else, ever.
func (h *TokenHandler) CreateToken(c *gin.Context) {
	user := auth.UserFromContext(c)

	var req CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid token payload")
		return
	}

	if !user.CurrentRole.Permissions.IsAdmin() {
		held, err := h.db.UserHasRole(user.UserID, req.RoleID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to check role")
			return
		}
		if !held {
			respondError(c, http.StatusForbidden, "User does not hold the requested role")
			return
		}
	}

	token, err := h.issuer.Issue(user.UserID, req.RoleID, req.Name, req.ExpiresIn)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRoleNotFound):
			respondError(c, http.StatusBadRequest, "Role not found")
		case errors.Is(err, auth.ErrUserInactive):
			respondError(c, http.StatusForbidden, "Account is disabled")
		default:
			respondError(c, http.StatusInternalServerError, "Failed to issue token")
		}
		return
	}

	respondData(c, http.StatusCreated, tokenResponse{
		ID:        token.ID,
		Name:      token.Name,
		Token:     token.Value,
		RoleID:    token.RoleID,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
	})
}

// RevokeToken soft-revokes a token. Owners may revoke their own tokens,
// admins anyone's, and nobody the token authenticating the current request.
func (h *TokenHandler) RevokeToken(c *gin.Context) {
	user := auth.UserFromContext(c)
	tokenID := c.Param("id")

	var token models.Token
	if err := h.db.First(&token, "id = ?", tokenID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Token not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch token")
		return
	}

	if token.UserID != user.UserID && !user.CurrentRole.Permissions.IsAdmin() {
		respondError(c, http.StatusForbidden, "Cannot revoke another user's token")
		return
	}

	if token.ID == user.TokenID {
		respondError(c, http.StatusForbidden, "Cannot revoke the token you are currently using")
		return
	}

	if err := h.db.RevokeToken(token.ID, time.Now()); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to revoke token")
		return
	}

	respondMessage(c, http.StatusOK, "Token revoked")
}
