package auth

import (
	"net/http"
	"strings"

	"github.com/docmem/docmem/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Context keys set by the gateway middleware.
const (
	ContextUserKey       = "auth_user"
	ContextCredentialKey = "auth_credential"
	ContextProjectIDKey  = "auth_project_id"
)

// ProjectScopeHeader carries an explicit project scope when the route path
// does not.
const ProjectScopeHeader = "X-Project-ID"

// Policy declares what a protected operation requires. RouteProjectParam
// names the gin path parameter carrying the project id, when there is one.
type Policy struct {
	Resource          models.Resource
	Action            models.Action
	RouteProjectParam string
	RequireProjectID  bool
	AllowLegacyTokens bool
}

// Gateway wraps protected operations: it authenticates the request,
// resolves the project scope, evaluates permissions, and either forwards or
// produces a structured denial.
type Gateway struct {
	validator *Validator
	log       *logrus.Logger
}

func NewGateway(validator *Validator, log *logrus.Logger) *Gateway {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gateway{validator: validator, log: log}
}

func bearerValue(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func abortEnvelope(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// RequirePermission enforces a Policy on every request through it.
func (g *Gateway) RequirePermission(policy Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		value := bearerValue(c)
		if value == "" {
			abortEnvelope(c, http.StatusUnauthorized, "Invalid or missing authentication token")
			return
		}

		cred, err := g.validator.ResolveCredential(value)
		if err != nil {
			abortEnvelope(c, http.StatusInternalServerError, "Authentication failed")
			return
		}
		if cred == nil {
			abortEnvelope(c, http.StatusUnauthorized, "Invalid or missing authentication token")
			return
		}

		switch cred := cred.(type) {
		case models.UserCredential:
			projectID := g.resolveProjectID(c, policy, "")
			if policy.RequireProjectID && projectID == "" {
				abortEnvelope(c, http.StatusBadRequest, "Project ID is required")
				return
			}

			if !HasPermission(cred.Context, policy.Resource, policy.Action, projectID) {
				g.log.WithFields(logrus.Fields{
					"user_id":    cred.Context.UserID,
					"resource":   policy.Resource,
					"action":     policy.Action,
					"project_id": projectID,
				}).Warn("permission denied")
				abortEnvelope(c, http.StatusForbidden, "Insufficient permissions")
				return
			}

			c.Set(ContextUserKey, cred.Context)
			c.Set(ContextCredentialKey, models.Credential(cred))
			c.Set(ContextProjectIDKey, projectID)

		case models.LegacyCredential:
			if !policy.AllowLegacyTokens {
				abortEnvelope(c, http.StatusForbidden, "Legacy tokens are not allowed for this endpoint.")
				return
			}

			projectID := g.resolveProjectID(c, policy, cred.ProjectID)
			if policy.RequireProjectID && projectID == "" {
				abortEnvelope(c, http.StatusBadRequest, "Project ID is required")
				return
			}

			// A legacy token only ever reaches its own project.
			if projectID != cred.ProjectID {
				g.log.WithFields(logrus.Fields{
					"project_token_id": cred.TokenID,
					"resource":         policy.Resource,
					"action":           policy.Action,
					"project_id":       projectID,
				}).Warn("permission denied for legacy token")
				abortEnvelope(c, http.StatusForbidden, "Insufficient permissions")
				return
			}

			c.Set(ContextCredentialKey, models.Credential(cred))
			c.Set(ContextProjectIDKey, projectID)
		}

		c.Next()
	}
}

// resolveProjectID picks the effective project scope: route path first, then
// the scope header, then the project embedded in a legacy credential.
func (g *Gateway) resolveProjectID(c *gin.Context, policy Policy, credentialProjectID string) string {
	if policy.RouteProjectParam != "" {
		if id := c.Param(policy.RouteProjectParam); id != "" {
			return id
		}
	}
	if id := c.GetHeader(ProjectScopeHeader); id != "" {
		return id
	}
	return credentialProjectID
}

// AdminOnly accepts only user credentials whose bound role carries the
// system admin flag. Legacy tokens never pass.
func (g *Gateway) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		value := bearerValue(c)
		if value == "" {
			abortEnvelope(c, http.StatusUnauthorized, "Invalid or missing authentication token")
			return
		}

		user, err := g.validator.Validate(value)
		if err != nil {
			abortEnvelope(c, http.StatusInternalServerError, "Authentication failed")
			return
		}
		if user == nil {
			abortEnvelope(c, http.StatusUnauthorized, "Invalid or missing authentication token")
			return
		}

		if !user.CurrentRole.Permissions.IsAdmin() {
			g.log.WithFields(logrus.Fields{
				"user_id": user.UserID,
				"role":    user.CurrentRole.Name,
			}).Warn("admin access denied")
			abortEnvelope(c, http.StatusForbidden, "Admin access required")
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextCredentialKey, models.Credential(models.UserCredential{Context: user}))
		c.Next()
	}
}

// OptionalAuth attaches the principal when a valid credential is presented
// and always lets the request through.
func (g *Gateway) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if value := bearerValue(c); value != "" {
			user, err := g.validator.Validate(value)
			if err == nil && user != nil {
				c.Set(ContextUserKey, user)
				c.Set(ContextCredentialKey, models.Credential(models.UserCredential{Context: user}))
			}
		}
		c.Next()
	}
}

// UserFromContext returns the authenticated principal attached by the
// gateway, or nil for anonymous/legacy requests.
func UserFromContext(c *gin.Context) *models.UserContext {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, ok := v.(*models.UserContext)
	if !ok {
		return nil
	}
	return user
}

// ProjectIDFromContext returns the project scope the gateway resolved for
// this request, if any.
func ProjectIDFromContext(c *gin.Context) string {
	return c.GetString(ContextProjectIDKey)
}
