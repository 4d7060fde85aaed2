package api

import (
	"errors"
	"net/http"

	"github.com/docmem/docmem/internal/auth"
	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/docmem/docmem/pkg/crypto"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DefaultLoginTokenHours is the expiry applied to interactive login tokens
// when the client does not ask for one.
const DefaultLoginTokenHours = 720

type AuthHandler struct {
	db     *database.Database
	issuer *auth.Issuer
}

func NewAuthHandler(db *database.Database, issuer *auth.Issuer) *AuthHandler {
	return &AuthHandler{db: db, issuer: issuer}
}

type LoginRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	RoleID    string `json:"role_id"`
	TokenName string `json:"token_name"`
	ExpiresIn int    `json:"expires_in"` // hours
}

type roleSummary struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Permissions models.Permissions `json:"permissions"`
}

// Login authenticates by email/password and issues a bearer token bound to
// one of the user's roles. The failure message never reveals whether the
// email exists.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid login payload")
		return
	}

	user, err := h.db.FindUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		respondError(c, http.StatusInternalServerError, "Login failed")
		return
	}

	if !crypto.VerifyPassword(req.Password, user.PasswordHash) {
		respondError(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if !user.IsActive {
		respondError(c, http.StatusForbidden, "Account is disabled")
		return
	}

	if len(user.Roles) == 0 {
		respondError(c, http.StatusForbidden, "User has no roles assigned")
		return
	}

	// Pick the requested role, or default to the first one the user holds.
	role := user.Roles[0]
	if req.RoleID != "" {
		found := false
		for _, r := range user.Roles {
			if r.ID == req.RoleID {
				role = r
				found = true
				break
			}
		}
		if !found {
			respondError(c, http.StatusForbidden, "User does not hold the requested role")
			return
		}
	}

	expiresIn := req.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = DefaultLoginTokenHours
	}

	name := req.TokenName
	if name == "" {
		name = "login"
	}

	token, err := h.issuer.Issue(user.ID, role.ID, name, expiresIn)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"token":      token.Value,
		"expires_at": token.ExpiresAt,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"roles": user.Roles,
		},
		"current_role": roleSummary{
			ID:          role.ID,
			Name:        role.Name,
			Permissions: role.Permissions,
		},
	})
}

// ValidateCredential reports whether the presented credential resolved to a
// principal. Mounted behind OptionalAuth, so it never rejects.
func (h *AuthHandler) ValidateCredential(c *gin.Context) {
	user := auth.UserFromContext(c)
	if user == nil {
		respondData(c, http.StatusOK, gin.H{"valid": false})
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"valid": true,
		"user": gin.H{
			"id":    user.UserID,
			"email": user.Email,
			"name":  user.Name,
		},
		"current_role": user.CurrentRole.Name,
	})
}
