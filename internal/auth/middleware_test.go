package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGatewayRouter(t *testing.T, db *database.Database) (*gin.Engine, *Gateway) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gateway := NewGateway(NewValidator(db, nil), nil)
	router := gin.New()
	return router, gateway
}

func doRequest(router *gin.Engine, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func envelopeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error
}

func TestGatewayRejectsMissingAndMalformedAuth(t *testing.T) {
	db := setupTestDB(t)
	router, gateway := setupGatewayRouter(t, db)

	router.GET("/protected", gateway.RequirePermission(Policy{
		Resource: models.ResourceDoc, Action: models.ActionRead,
	}), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doRequest(router, http.MethodGet, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid or missing authentication token", envelopeError(t, w))

	// Non-Bearer scheme
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodGet, "/protected", "not-a-real-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGatewayEnforcesPermission(t *testing.T) {
	db := setupTestDB(t)
	router, gateway := setupGatewayRouter(t, db)

	user, role := createTestUser(t, db, "reader@example.com", models.Permissions{
		Global: &models.GlobalPermissions{Docs: &models.GlobalActions{Read: true}},
	})
	token := issueTestToken(t, db, user.ID, role.ID, 0)

	var seenUser *models.UserContext
	handler := func(c *gin.Context) {
		seenUser = UserFromContext(c)
		c.Status(http.StatusOK)
	}
	router.GET("/read", gateway.RequirePermission(Policy{
		Resource: models.ResourceDoc, Action: models.ActionRead,
	}), handler)
	router.POST("/write", gateway.RequirePermission(Policy{
		Resource: models.ResourceDoc, Action: models.ActionWrite,
	}), handler)

	w := doRequest(router, http.MethodGet, "/read", token.Value)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, seenUser)
	assert.Equal(t, user.ID, seenUser.UserID)

	w = doRequest(router, http.MethodPost, "/write", token.Value)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Insufficient permissions", envelopeError(t, w))
}

func TestGatewayResolvesProjectScope(t *testing.T) {
	db := setupTestDB(t)
	router, gateway := setupGatewayRouter(t, db)

	user, role := createTestUser(t, db, "scoped@example.com", models.Permissions{
		Projects: &models.ProjectPermissions{
			Specific: map[string]*models.ProjectActions{"p1": {Read: true}},
		},
	})
	token := issueTestToken(t, db, user.ID, role.ID, 0)

	var seenProject string
	handler := func(c *gin.Context) {
		seenProject = ProjectIDFromContext(c)
		c.Status(http.StatusOK)
	}
	router.GET("/projects/:project", gateway.RequirePermission(Policy{
		Resource:          models.ResourceProject,
		Action:            models.ActionRead,
		RouteProjectParam: "project",
		RequireProjectID:  true,
	}), handler)
	router.GET("/header-scoped", gateway.RequirePermission(Policy{
		Resource:         models.ResourceProject,
		Action:           models.ActionRead,
		RequireProjectID: true,
	}), handler)

	// Route param source
	w := doRequest(router, http.MethodGet, "/projects/p1", token.Value)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p1", seenProject)

	w = doRequest(router, http.MethodGet, "/projects/p2", token.Value)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Header source
	req := httptest.NewRequest(http.MethodGet, "/header-scoped", nil)
	req.Header.Set("Authorization", "Bearer "+token.Value)
	req.Header.Set(ProjectScopeHeader, "p1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", seenProject)

	// Required but unresolvable
	w = doRequest(router, http.MethodGet, "/header-scoped", token.Value)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGatewayLegacyTokens(t *testing.T) {
	db := setupTestDB(t)
	router, gateway := setupGatewayRouter(t, db)

	legacy := &models.ProjectToken{Value: "legacy-value", ProjectID: "p1"}
	require.NoError(t, db.Create(legacy).Error)

	handler := func(c *gin.Context) { c.Status(http.StatusOK) }
	router.GET("/legacy-ok/:project", gateway.RequirePermission(Policy{
		Resource:          models.ResourceProject,
		Action:            models.ActionRead,
		RouteProjectParam: "project",
		RequireProjectID:  true,
		AllowLegacyTokens: true,
	}), handler)
	router.GET("/no-legacy", gateway.RequirePermission(Policy{
		Resource: models.ResourceDoc, Action: models.ActionRead,
	}), handler)
	router.GET("/implicit-scope", gateway.RequirePermission(Policy{
		Resource:          models.ResourceProject,
		Action:            models.ActionRead,
		RequireProjectID:  true,
		AllowLegacyTokens: true,
	}), handler)

	// Its own project
	w := doRequest(router, http.MethodGet, "/legacy-ok/p1", "legacy-value")
	assert.Equal(t, http.StatusOK, w.Code)

	// A different project
	w = doRequest(router, http.MethodGet, "/legacy-ok/p2", "legacy-value")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// A route that does not admit legacy credentials
	w = doRequest(router, http.MethodGet, "/no-legacy", "legacy-value")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Legacy tokens are not allowed for this endpoint.", envelopeError(t, w))

	// No route/header scope: the credential supplies its own project
	w = doRequest(router, http.MethodGet, "/implicit-scope", "legacy-value")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminOnlyGateway(t *testing.T) {
	db := setupTestDB(t)
	router, gateway := setupGatewayRouter(t, db)

	adminUser, adminRole := createTestUser(t, db, "root@example.com", models.AdminPermissions())
	plainUser, plainRole := createTestUser(t, db, "plain@example.com", models.Permissions{
		Global: &models.GlobalPermissions{Docs: &models.GlobalActions{Read: true, Write: true, Delete: true, Index: true}},
	})
	adminToken := issueTestToken(t, db, adminUser.ID, adminRole.ID, 0)
	plainToken := issueTestToken(t, db, plainUser.ID, plainRole.ID, 0)

	legacy := &models.ProjectToken{Value: "legacy-admin-try", ProjectID: "p1"}
	require.NoError(t, db.Create(legacy).Error)

	router.GET("/admin", gateway.AdminOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doRequest(router, http.MethodGet, "/admin", adminToken.Value)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/admin", plainToken.Value)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Admin access required", envelopeError(t, w))

	w = doRequest(router, http.MethodGet, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Legacy credentials never reach admin surfaces
	w = doRequest(router, http.MethodGet, "/admin", "legacy-admin-try")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuthNeverRejects(t *testing.T) {
	db := setupTestDB(t)
	router, gateway := setupGatewayRouter(t, db)

	user, role := createTestUser(t, db, "opt@example.com", models.Permissions{})
	token := issueTestToken(t, db, user.ID, role.ID, 0)

	router.GET("/open", gateway.OptionalAuth(), func(c *gin.Context) {
		if u := UserFromContext(c); u != nil {
			c.JSON(http.StatusOK, gin.H{"user": u.Email})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": nil})
	})

	w := doRequest(router, http.MethodGet, "/open", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "null")

	w = doRequest(router, http.MethodGet, "/open", "garbage-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "null")

	w = doRequest(router, http.MethodGet, "/open", token.Value)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "opt@example.com")
}
