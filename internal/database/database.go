package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docmem/docmem/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the single shared gorm handle. It is opened once in main
// and injected everywhere; there is no per-package client.
type Database struct {
	*gorm.DB
}

func NewDatabase(dataDir string) (*Database, error) {
	dbPath := filepath.Join(dataDir, "db", "docmem.db")

	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		// Auth entities
		&models.User{},
		&models.Role{},
		&models.UserRole{},
		&models.Token{},
		&models.ProjectToken{},

		// Memory entities
		&models.Project{},
		&models.Document{},
		&models.Preference{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQL DB: %w", err)
	}

	// Vector search degrades to unavailable when the extension is missing
	_ = InitializeVectorExtension(sqlDB)

	return &Database{DB: db}, nil
}

// Close releases the underlying connection pool.
func (db *Database) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FindUserByEmail loads a user with roles preloaded. Returns
// gorm.ErrRecordNotFound when no such user exists.
func (db *Database) FindUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := db.Preload("Roles").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByID loads a user with roles preloaded.
func (db *Database) FindUserByID(id string) (*models.User, error) {
	var user models.User
	if err := db.Preload("Roles").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UserHasRole reports whether the user holds the role through the join table.
func (db *Database) UserHasRole(userID, roleID string) (bool, error) {
	var count int64
	err := db.Model(&models.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Count(&count).Error
	return count > 0, err
}

// FindActiveTokenByValue looks up a token by its secret where it has not
// been revoked. A revoked token and an unknown token are indistinguishable
// to the caller.
func (db *Database) FindActiveTokenByValue(value string) (*models.Token, error) {
	var token models.Token
	err := db.Where("value = ? AND revoked_at IS NULL", value).First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// FindActiveProjectTokenByValue resolves a legacy project token by secret.
func (db *Database) FindActiveProjectTokenByValue(value string) (*models.ProjectToken, error) {
	var token models.ProjectToken
	err := db.Where("value = ? AND revoked_at IS NULL", value).First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// TouchTokenLastUsed records a validation-time use. Callers run it
// fire-and-forget; a failure must never fail the surrounding request.
func (db *Database) TouchTokenLastUsed(tokenID string, at time.Time) error {
	return db.Model(&models.Token{}).
		Where("id = ?", tokenID).
		Update("last_used_at", at).Error
}

// RevokeToken soft-revokes a token. Revocation is monotonic: an already
// revoked token keeps its original revocation time.
func (db *Database) RevokeToken(tokenID string, at time.Time) error {
	return db.Model(&models.Token{}).
		Where("id = ? AND revoked_at IS NULL", tokenID).
		Update("revoked_at", at).Error
}

// RoleUsage counts the users and tokens that reference a role. Revoked
// tokens still count as references; they are audit records, not deletions.
func (db *Database) RoleUsage(roleID string) (userCount, tokenCount int64, err error) {
	if err = db.Model(&models.UserRole{}).Where("role_id = ?", roleID).Count(&userCount).Error; err != nil {
		return 0, 0, err
	}
	if err = db.Model(&models.Token{}).Where("role_id = ?", roleID).Count(&tokenCount).Error; err != nil {
		return 0, 0, err
	}
	return userCount, tokenCount, nil
}

// AssignRole links a user to a role, idempotently.
func (db *Database) AssignRole(userID, roleID string) error {
	return db.FirstOrCreate(&models.UserRole{}, models.UserRole{UserID: userID, RoleID: roleID}).Error
}

// RemoveRole unlinks a user from a role.
func (db *Database) RemoveRole(userID, roleID string) error {
	return db.Delete(&models.UserRole{}, "user_id = ? AND role_id = ?", userID, roleID).Error
}

// Built-in role names created by EnsureSystemRoles.
const (
	SystemRoleAdmin  = "admin"
	SystemRoleViewer = "viewer"
)

// EnsureSystemRoles creates the built-in roles when missing. Existing rows
// are left untouched; system roles are immutable once created.
func (db *Database) EnsureSystemRoles() error {
	roles := []models.Role{
		{
			Name:        SystemRoleAdmin,
			Description: "Full access to every resource",
			Permissions: models.AdminPermissions(),
			IsSystem:    true,
		},
		{
			Name:        SystemRoleViewer,
			Description: "Read-only access to projects and documents",
			Permissions: models.ViewerPermissions(),
			IsSystem:    true,
		},
	}

	for i := range roles {
		var existing models.Role
		err := db.Where("name = ?", roles[i].Name).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		if err := db.Create(&roles[i]).Error; err != nil {
			return fmt.Errorf("failed to create system role %s: %w", roles[i].Name, err)
		}
	}
	return nil
}
