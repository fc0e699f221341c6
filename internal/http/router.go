package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/inkwellhq/inkwell/internal/config"
	"github.com/inkwellhq/inkwell/internal/http/handler"
	httpmiddleware "github.com/inkwellhq/inkwell/internal/http/middleware"
	"github.com/inkwellhq/inkwell/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, contentHandler *handler.ContentHandler, session *httpmiddleware.Session, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/auth")
	{
		auth.GET("/oauth/:provider/callback", authHandler.OAuthCallback)
		auth.POST("/oauth/:provider/callback", authHandler.OAuthExchange)
		auth.POST("/onetap", authHandler.OneTap)
		auth.POST("/login", authHandler.PasswordLogin)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/logout-all", session.RequireUser, authHandler.LogoutAll)
		auth.GET("/me", session.RequireUser, authHandler.Me)
	}

	r.GET("/posts", contentHandler.ListPublishedPosts)
	r.GET("/posts/:slug", contentHandler.GetPublishedPost)
	r.GET("/categories", contentHandler.ListCategories)

	admin := r.Group("/admin", session.RequireUser, session.RequireAdmin)
	{
		admin.GET("/posts", contentHandler.ListAllPosts)
		admin.POST("/posts", contentHandler.CreatePost)
		admin.GET("/posts/:id", contentHandler.GetPost)
		admin.PUT("/posts/:id", contentHandler.UpdatePost)
		admin.POST("/posts/:id/publish", contentHandler.PublishPost)
		admin.POST("/posts/:id/unpublish", contentHandler.UnpublishPost)
		admin.DELETE("/posts/:id", contentHandler.DeletePost)
		admin.POST("/categories", contentHandler.CreateCategory)
	}

	return r
}
