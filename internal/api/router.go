package api

import (
	"github.com/docmem/docmem/internal/auth"
	"github.com/docmem/docmem/internal/database"
	"github.com/docmem/docmem/internal/models"
	"github.com/docmem/docmem/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRouter wires every endpoint behind its gateway policy.
func SetupRouter(db *database.Database, indexer *service.Indexer, log *logrus.Logger) *gin.Engine {
	validator := auth.NewValidator(db, log)
	gateway := auth.NewGateway(validator, log)
	issuer := auth.NewIssuer(db)

	authHandler := NewAuthHandler(db, issuer)
	tokenHandler := NewTokenHandler(db, issuer)
	roleHandler := NewRoleHandler(db)
	userHandler := NewUserHandler(db)
	docHandler := NewDocHandler(db, indexer)
	projectHandler := NewProjectHandler(db)
	prefHandler := NewPreferenceHandler(db)

	router := gin.Default()
	router.RedirectTrailingSlash = false
	router.Use(cors.Default())

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/validate", gateway.OptionalAuth(), authHandler.ValidateCredential)
	}

	api := router.Group("/api")
	{
		// Token self-service: any authenticated user, scoped inside the
		// handlers (ownership checks, role possession).
		tokens := api.Group("/tokens")
		tokens.Use(gateway.OptionalAuth(), requireUser())
		{
			tokens.GET("", tokenHandler.ListTokens)
			tokens.POST("", tokenHandler.CreateToken)
			tokens.DELETE("/:id", tokenHandler.RevokeToken)
		}

		// Role administration is admin-only end to end.
		roles := api.Group("/roles")
		roles.Use(gateway.AdminOnly())
		{
			roles.GET("", roleHandler.ListRoles)
			roles.POST("", roleHandler.CreateRole)
			roles.GET("/:id", roleHandler.GetRole)
			roles.PUT("/:id", roleHandler.UpdateRole)
			roles.DELETE("/:id", roleHandler.DeleteRole)
		}

		users := api.Group("/users")
		{
			users.GET("", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceUser, Action: models.ActionRead,
			}), userHandler.ListUsers)
			users.POST("", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceUser, Action: models.ActionWrite,
			}), userHandler.CreateUser)
			users.GET("/:id", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceUser, Action: models.ActionRead,
			}), userHandler.GetUser)
			users.DELETE("/:id", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceUser, Action: models.ActionDelete,
			}), userHandler.DeactivateUser)
			users.POST("/:id/roles/:roleId", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceUser, Action: models.ActionWrite,
			}), userHandler.AssignUserRole)
			users.DELETE("/:id/roles/:roleId", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceUser, Action: models.ActionWrite,
			}), userHandler.RemoveUserRole)
		}

		prefs := api.Group("/preferences")
		{
			prefs.GET("", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourcePreference, Action: models.ActionRead,
			}), prefHandler.GetPreferences)
			prefs.PUT("", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourcePreference, Action: models.ActionWrite,
			}), prefHandler.PutPreferences)
		}

		docs := api.Group("/docs")
		{
			docs.GET("", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceDoc, Action: models.ActionRead,
			}), docHandler.ListDocuments)
			docs.POST("", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceDoc, Action: models.ActionWrite,
			}), docHandler.CreateDocument)
			docs.POST("/search", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceDoc, Action: models.ActionRead,
			}), docHandler.SearchDocuments)
			docs.POST("/reindex", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceDoc, Action: models.ActionIndex,
			}), docHandler.ReindexAll)
			docs.GET("/:id", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceDoc, Action: models.ActionRead,
			}), docHandler.GetDocument)
			docs.PUT("/:id", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceDoc, Action: models.ActionWrite,
			}), docHandler.UpdateDocument)
			docs.DELETE("/:id", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceDoc, Action: models.ActionDelete,
			}), docHandler.DeleteDocument)
			docs.POST("/:id/reindex", gateway.RequirePermission(auth.Policy{
				Resource: models.ResourceDoc, Action: models.ActionIndex,
			}), docHandler.ReindexDocument)
		}

		projects := api.Group("/projects")
		{
			// List and create check scope inside the handlers; the
			// gateway only authenticates here.
			projects.GET("", gateway.OptionalAuth(), requireUser(), projectHandler.ListProjects)
			projects.POST("", gateway.OptionalAuth(), requireUser(), projectHandler.CreateProject)

			projects.GET("/:project", gateway.RequirePermission(auth.Policy{
				Resource:          models.ResourceProject,
				Action:            models.ActionRead,
				RouteProjectParam: "project",
				RequireProjectID:  true,
				AllowLegacyTokens: true,
			}), projectHandler.GetProject)
			projects.PUT("/:project", gateway.RequirePermission(auth.Policy{
				Resource:          models.ResourceProject,
				Action:            models.ActionWrite,
				RouteProjectParam: "project",
				RequireProjectID:  true,
			}), projectHandler.UpdateProject)
			projects.DELETE("/:project", gateway.RequirePermission(auth.Policy{
				Resource:          models.ResourceProject,
				Action:            models.ActionDelete,
				RouteProjectParam: "project",
				RequireProjectID:  true,
			}), projectHandler.DeleteProject)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	return router
}

// requireUser turns OptionalAuth into mandatory user auth for routes whose
// authorization lives in the handler rather than a single Policy.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth.UserFromContext(c) == nil {
			c.AbortWithStatusJSON(401, gin.H{
				"success": false,
				"error":   "Invalid or missing authentication token",
			})
			return
		}
		c.Next()
	}
}
