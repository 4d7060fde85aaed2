package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/docmem/docmem/internal/auth"
	"github.com/docmem/docmem/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTokenForHeldRole(t *testing.T) {
	router, db := setupAPI(t)
	user, role := createUser(t, db, "alice@example.com", "pw", models.Permissions{})
	bearer := bearerToken(t, db, user, role)

	w, env := request(t, router, http.MethodPost, "/api/tokens", bearer, map[string]interface{}{
		"name":       "ci token",
		"role_id":    role.ID,
		"expires_in": 24,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var data struct {
		ID        string `json:"id"`
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.NotEmpty(t, data.Token)
	assert.NotContains(t, data.Token, "...", "creation returns the plaintext, not the mask")
	assert.NotEmpty(t, data.ExpiresAt)

	// The new token authenticates
	w, _ = request(t, router, http.MethodGet, "/api/tokens", data.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateTokenForUnheldRole(t *testing.T) {
	router, db := setupAPI(t)
	user, role := createUser(t, db, "bob@example.com", "pw", models.Permissions{})
	bearer := bearerToken(t, db, user, role)

	other := &models.Role{Name: "other-role"}
	require.NoError(t, db.Create(other).Error)

	w, env := request(t, router, http.MethodPost, "/api/tokens", bearer, map[string]interface{}{
		"role_id": other.ID,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "User does not hold the requested role", env.Error)
}

func TestAdminMayIssueForAnyRole(t *testing.T) {
	router, db := setupAPI(t)
	admin, adminRole := createUser(t, db, "root@example.com", "pw", models.AdminPermissions())
	bearer := bearerToken(t, db, admin, adminRole)

	other := &models.Role{Name: "unheld-by-admin"}
	require.NoError(t, db.Create(other).Error)

	w, _ := request(t, router, http.MethodPost, "/api/tokens", bearer, map[string]interface{}{
		"role_id": other.ID,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestListTokensMasksSecrets(t *testing.T) {
	router, db := setupAPI(t)
	user, role := createUser(t, db, "carol@example.com", "pw", models.Permissions{})
	bearer := bearerToken(t, db, user, role)

	// A second user's tokens must not appear
	other, otherRole := createUser(t, db, "dave@example.com", "pw", models.Permissions{})
	bearerToken(t, db, other, otherRole)

	w, env := request(t, router, http.MethodGet, "/api/tokens", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var tokens []struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	require.Len(t, tokens, 1)

	assert.Contains(t, tokens[0].Token, "...")
	assert.NotEqual(t, bearer, tokens[0].Token)
	assert.Equal(t, bearer[:4], tokens[0].Token[:4])
}

func TestRevokeOwnToken(t *testing.T) {
	router, db := setupAPI(t)
	user, role := createUser(t, db, "eve@example.com", "pw", models.Permissions{})
	bearer := bearerToken(t, db, user, role)

	victim, err := auth.NewIssuer(db).Issue(user.ID, role.ID, "spare", 24)
	require.NoError(t, err)

	w, _ := request(t, router, http.MethodDelete, "/api/tokens/"+victim.ID, bearer, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Revoked immediately: the spare token no longer validates, despite
	// its future expiry
	w, _ = request(t, router, http.MethodGet, "/api/tokens", victim.Value, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCannotRevokeTokenInUse(t *testing.T) {
	router, db := setupAPI(t)
	user, role := createUser(t, db, "frank@example.com", "pw", models.Permissions{})
	bearer := bearerToken(t, db, user, role)

	var current models.Token
	require.NoError(t, db.Where("value = ?", bearer).First(&current).Error)

	w, env := request(t, router, http.MethodDelete, "/api/tokens/"+current.ID, bearer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Cannot revoke the token you are currently using", env.Error)
}

func TestCannotRevokeAnotherUsersToken(t *testing.T) {
	router, db := setupAPI(t)
	user, role := createUser(t, db, "grace@example.com", "pw", models.Permissions{})
	bearer := bearerToken(t, db, user, role)

	other, otherRole := createUser(t, db, "heidi@example.com", "pw", models.Permissions{})
	otherToken, err := auth.NewIssuer(db).Issue(other.ID, otherRole.ID, "theirs", 0)
	require.NoError(t, err)

	w, _ := request(t, router, http.MethodDelete, "/api/tokens/"+otherToken.ID, bearer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// An admin may revoke anyone's token
	admin, adminRole := createUser(t, db, "root@example.com", "pw", models.AdminPermissions())
	adminBearer := bearerToken(t, db, admin, adminRole)

	w, _ = request(t, router, http.MethodDelete, "/api/tokens/"+otherToken.ID, adminBearer, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRevokeUnknownToken(t *testing.T) {
	router, db := setupAPI(t)
	user, role := createUser(t, db, "ivan@example.com", "pw", models.Permissions{})
	bearer := bearerToken(t, db, user, role)

	w, _ := request(t, router, http.MethodDelete, "/api/tokens/no-such-id", bearer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
