package models

// UserContext is the authenticated principal a validated token resolves to.
// CurrentRole is the single role the token is bound to; Roles lists every
// role the user holds. Permission checks use CurrentRole only, so the same
// user gets different effective permissions depending on which token they
// authenticated with.
type UserContext struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	TokenID     string `json:"-"`
	Roles       []Role `json:"roles"`
	CurrentRole Role   `json:"current_role"`
}

// Credential is the tagged union of the two credential kinds the gateway
// accepts. The interface is sealed so a switch over kinds is exhaustive.
type Credential interface {
	credential()
}

// UserCredential is a validated RBAC bearer token.
type UserCredential struct {
	Context *UserContext
}

func (UserCredential) credential() {}

// LegacyCredential is a validated pre-RBAC project token. It carries no user
// identity; it grants access only to its one project, on routes that opt in.
type LegacyCredential struct {
	TokenID   string
	ProjectID string
}

func (LegacyCredential) credential() {}
