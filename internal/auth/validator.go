package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Validator resolves presented bearer secrets to authenticated principals.
// Every call re-reads the store, so revocation and deactivation take effect
// on the very next request.
type Validator struct {
	db  *database.Database
	log *logrus.Logger
}

func NewValidator(db *database.Database, log *logrus.Logger) *Validator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Validator{db: db, log: log}
}

// Validate resolves a bearer secret to a UserContext, or nil when the
// credential is unknown, revoked, expired, or owned by an inactive user.
// All four cases look identical to the caller; the reason is never leaked.
// A non-nil error means the store itself failed.
func (v *Validator) Validate(value string) (*models.UserContext, error) {
	if value == "" {
		return nil, nil
	}

	token, err := v.db.FindActiveTokenByValue(value)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}

	if token.IsExpired() {
		return nil, nil
	}

	user, err := v.db.FindUserByID(token.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("token owner lookup failed: %w", err)
	}
	if !user.IsActive {
		return nil, nil
	}

	var currentRole models.Role
	if err := v.db.First(&currentRole, "id = ?", token.RoleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("token role lookup failed: %w", err)
	}

	// Best-effort usage stamp; two concurrent validations race harmlessly
	// (last write wins) and a write failure never fails the request.
	go func(tokenID string) {
		if err := v.db.TouchTokenLastUsed(tokenID, time.Now()); err != nil {
			v.log.WithError(err).WithField("token_id", tokenID).
				Warn("failed to update token last_used_at")
		}
	}(token.ID)

	return &models.UserContext{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		TokenID:     token.ID,
		Roles:       user.Roles,
		CurrentRole: currentRole,
	}, nil
}

// ResolveCredential resolves a bearer secret to either an RBAC user
// credential or a legacy project credential. RBAC tokens are tried first;
// nil means the secret matched neither.
func (v *Validator) ResolveCredential(value string) (models.Credential, error) {
	ctx, err := v.Validate(value)
	if err != nil {
		return nil, err
	}
	if ctx != nil {
		return models.UserCredential{Context: ctx}, nil
	}

	legacy, err := v.db.FindActiveProjectTokenByValue(value)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("project token lookup failed: %w", err)
	}

	go func(tokenID string) {
		err := v.db.Model(&models.ProjectToken{}).
			Where("id = ?", tokenID).
			Update("last_used_at", time.Now()).Error
		if err != nil {
			v.log.WithError(err).WithField("project_token_id", tokenID).
				Warn("failed to update project token last_used_at")
		}
	}(legacy.ID)

	return models.LegacyCredential{
		TokenID:   legacy.ID,
		ProjectID: legacy.ProjectID,
	}, nil
}
