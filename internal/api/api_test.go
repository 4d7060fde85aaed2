package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/docmem/docmem/internal/auth"
	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/docmem/docmem/internal/service"
	"github.com/docmem/docmem/pkg/crypto"
	"github.com/docmem/docmem/pkg/embeddings"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func setupAPI(t *testing.T) (*gin.Engine, *database.Database) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureSystemRoles())

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	indexer := service.NewIndexer(db, embeddings.NewLocalProvider(384), 1, log)
	indexer.Start()
	t.Cleanup(indexer.Stop)

	return SetupRouter(db, indexer, log), db
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)
	return hash
}

func createUser(t *testing.T, db *database.Database, email, password string, perms models.Permissions) (*models.User, *models.Role) {
	t.Helper()

	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)

	role := &models.Role{
		Name:        "role-" + email,
		Permissions: perms,
	}
	require.NoError(t, db.Create(role).Error)
	require.NoError(t, db.AssignRole(user.ID, role.ID))

	return user, role
}

func bearerToken(t *testing.T, db *database.Database, user *models.User, role *models.Role) string {
	t.Helper()
	token, err := auth.NewIssuer(db).Issue(user.ID, role.ID, "test", 0)
	require.NoError(t, err)
	return token.Value
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func request(t *testing.T, router *gin.Engine, method, path, bearer string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}
