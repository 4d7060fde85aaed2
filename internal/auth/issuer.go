package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/docmem/docmem/pkg/crypto"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound is returned when issuing for an unknown user.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserInactive is returned when issuing for a deactivated user.
	ErrUserInactive = errors.New("user is not active")
	// ErrRoleNotFound is returned when the bound role does not exist.
	ErrRoleNotFound = errors.New("role not found")
)

// Issuer creates bearer tokens bound to one user and one role.
type Issuer struct {
	db *database.Database
}

func NewIssuer(db *database.Database) *Issuer {
	return &Issuer{db: db}
}

// Issue mints a token for the user acting as roleID. The user must exist
// and be active and the role must exist; whether the user is required to
// hold the role is the calling endpoint's policy, not enforced here (admins
// issue tokens on behalf of others). expiresInHours <= 0 means no
// expiration. The returned Token carries the plaintext secret; this is the
// only moment it is ever available.
func (i *Issuer) Issue(userID, roleID, name string, expiresInHours int) (*models.Token, error) {
	user, err := i.db.FindUserByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	var role models.Role
	if err := i.db.First(&role, "id = ?", roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to load role: %w", err)
	}

	value, err := crypto.GenerateToken(crypto.DefaultTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}

	token := &models.Token{
		Value:  value,
		UserID: user.ID,
		RoleID: role.ID,
		Name:   name,
	}
	if expiresInHours > 0 {
		expiresAt := time.Now().Add(time.Duration(expiresInHours) * time.Hour)
		token.ExpiresAt = &expiresAt
	}

	if err := i.db.Create(token).Error; err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}

	return token, nil
}
