package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-" gorm:"not null"`
	IsActive     bool      `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Roles        []Role    `json:"roles,omitempty" gorm:"many2many:user_roles"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type Role struct {
	ID          string      `json:"id" gorm:"primaryKey;size:36"`
	Name        string      `json:"name" gorm:"uniqueIndex;not null"`
	Description string      `json:"description"`
	Permissions Permissions `json:"permissions" gorm:"type:text"`
	IsSystem    bool        `json:"is_system" gorm:"default:false"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// UserRole is the join table behind User.Roles, declared explicitly so role
// usage counts can query it directly.
type UserRole struct {
	UserID string `gorm:"primaryKey;size:36"`
	RoleID string `gorm:"primaryKey;size:36"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// Token is an opaque bearer credential bound to one user and one role. The
// secret value is never serialized; list endpoints expose Masked() instead.
// Tokens are soft-revoked, never deleted, to preserve the audit trail.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	Value      string     `json:"-" gorm:"uniqueIndex;not null"`
	UserID     string     `json:"user_id" gorm:"index;not null"`
	RoleID     string     `json:"role_id" gorm:"not null"`
	Name       string     `json:"name"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	User       *User      `json:"-" gorm:"foreignKey:UserID"`
	Role       *Role      `json:"-" gorm:"foreignKey:RoleID"`
}

func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// IsExpired reports whether the token's expiry, if any, has passed.
func (t *Token) IsExpired() bool {
	return t.ExpiresAt != nil && time.Now().After(*t.ExpiresAt)
}

// Masked returns a display-safe form of the secret: the first and last four
// characters around an ellipsis. The plaintext is only returned at issuance.
func (t *Token) Masked() string {
	if len(t.Value) < 12 {
		return "****"
	}
	return t.Value[:4] + "..." + t.Value[len(t.Value)-4:]
}

// ProjectToken is a legacy pre-RBAC credential scoped to a single project.
// No endpoint issues these; existing ones keep working on routes that opt in.
type ProjectToken struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	Value      string     `json:"-" gorm:"uniqueIndex;not null"`
	ProjectID  string     `json:"project_id" gorm:"index;not null"`
	Name       string     `json:"name"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (t *ProjectToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type Project struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"uniqueIndex;not null"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Document is a unit of semantic memory: prose or code with an optional
// owning project. IndexedAt tracks the embedding pipeline.
type Document struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	ProjectID string     `json:"project_id,omitempty" gorm:"index"`
	Title     string     `json:"title" gorm:"not null"`
	Content   string     `json:"content"`
	Source    string     `json:"source"`
	Tags      string     `json:"tags"`
	IndexedAt *time.Time `json:"indexed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// Preference is a per-user JSON blob of client settings.
type Preference struct {
	UserID    string    `json:"user_id" gorm:"primaryKey;size:36"`
	Data      string    `json:"data" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`
}
