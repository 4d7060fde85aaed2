package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Resource identifies what a permission check is about.
type Resource string

const (
	ResourceProject    Resource = "project"
	ResourceDoc        Resource = "doc"
	ResourceUser       Resource = "user"
	ResourceRole       Resource = "role"
	ResourcePreference Resource = "preference"
)

// Action identifies the operation being attempted on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionIndex  Action = "index"
)

// Permissions is the grant tree attached to a role. Every level is optional;
// a missing key means deny. It is stored as a JSON blob and parsed exactly
// once when the role row is loaded.
type Permissions struct {
	Projects *ProjectPermissions `json:"projects,omitempty"`
	Global   *GlobalPermissions  `json:"global,omitempty"`
	System   *SystemPermissions  `json:"system,omitempty"`
}

// ProjectPermissions holds the default grant applied across all projects and
// per-project overrides keyed by project id. A specific entry takes
// precedence over All, but only additively: absent and false are equivalent.
type ProjectPermissions struct {
	All      *ProjectActions            `json:"all,omitempty"`
	Specific map[string]*ProjectActions `json:"specific,omitempty"`
}

// ProjectActions are the grants available on project-scoped resources.
type ProjectActions struct {
	Read   bool `json:"read,omitempty"`
	Write  bool `json:"write,omitempty"`
	Delete bool `json:"delete,omitempty"`
}

// GlobalPermissions holds action flags per global resource kind.
type GlobalPermissions struct {
	Preferences *GlobalActions `json:"preferences,omitempty"`
	Docs        *GlobalActions `json:"docs,omitempty"`
	Users       *GlobalActions `json:"users,omitempty"`
	Roles       *GlobalActions `json:"roles,omitempty"`
}

// GlobalActions are the grants available on a global resource kind. Index is
// only meaningful for docs; the other kinds simply never grant it.
type GlobalActions struct {
	Read   bool `json:"read,omitempty"`
	Write  bool `json:"write,omitempty"`
	Delete bool `json:"delete,omitempty"`
	Index  bool `json:"index,omitempty"`
}

// SystemPermissions holds system-wide flags.
type SystemPermissions struct {
	// Admin short-circuits every permission check to allow.
	Admin bool `json:"admin,omitempty"`
}

// IsAdmin reports whether the tree carries the system admin flag.
func (p Permissions) IsAdmin() bool {
	return p.System != nil && p.System.Admin
}

// ProjectAllows resolves a project-scoped check additively: a true flag in
// the specific entry allows, otherwise a true flag in the All default
// allows. An explicit false in a specific entry is identical to an absent
// key; it does not revoke an All grant.
func (p Permissions) ProjectAllows(projectID string, action Action) bool {
	if p.Projects == nil {
		return false
	}
	if spec, ok := p.Projects.Specific[projectID]; ok && spec.Allows(action) {
		return true
	}
	return p.Projects.All.Allows(action)
}

// Allows reports whether a ProjectActions grant includes the action.
func (a *ProjectActions) Allows(action Action) bool {
	if a == nil {
		return false
	}
	switch action {
	case ActionRead:
		return a.Read
	case ActionWrite:
		return a.Write
	case ActionDelete:
		return a.Delete
	}
	return false
}

// Allows reports whether a GlobalActions grant includes the action.
func (a *GlobalActions) Allows(action Action) bool {
	if a == nil {
		return false
	}
	switch action {
	case ActionRead:
		return a.Read
	case ActionWrite:
		return a.Write
	case ActionDelete:
		return a.Delete
	case ActionIndex:
		return a.Index
	}
	return false
}

// ForResource returns the action bucket for a global resource kind, or nil
// for resource kinds that have no global bucket.
func (g *GlobalPermissions) ForResource(resource Resource) *GlobalActions {
	if g == nil {
		return nil
	}
	switch resource {
	case ResourcePreference:
		return g.Preferences
	case ResourceDoc:
		return g.Docs
	case ResourceUser:
		return g.Users
	case ResourceRole:
		return g.Roles
	}
	return nil
}

// Value serializes the tree to JSON for storage.
func (p Permissions) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize permissions: %w", err)
	}
	return string(data), nil
}

// Scan parses the stored JSON form back into the tree.
func (p *Permissions) Scan(value interface{}) error {
	if value == nil {
		*p = Permissions{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported permissions column type %T", value)
	}

	if len(data) == 0 {
		*p = Permissions{}
		return nil
	}
	return json.Unmarshal(data, p)
}

// AdminPermissions is the tree carried by the built-in admin role.
func AdminPermissions() Permissions {
	return Permissions{
		System: &SystemPermissions{Admin: true},
	}
}

// ViewerPermissions is the tree carried by the built-in viewer role:
// read access to every project and to docs and preferences.
func ViewerPermissions() Permissions {
	return Permissions{
		Projects: &ProjectPermissions{
			All: &ProjectActions{Read: true},
		},
		Global: &GlobalPermissions{
			Docs:        &GlobalActions{Read: true},
			Preferences: &GlobalActions{Read: true, Write: true},
		},
	}
}
