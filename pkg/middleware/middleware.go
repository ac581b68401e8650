package middleware

import (
	"github.com/flexscale/flexscale/pkg/config"
	"github.com/flexscale/flexscale/pkg/contextutils"
	"github.com/flexscale/flexscale/pkg/controller"
	"github.com/flexscale/flexscale/pkg/logging"
	"github.com/flexscale/flexscale/pkg/repository/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func Dependencies(mgr controller.Manager, cfg *config.Config, stg *storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("taskManager", mgr)
		c.Set("appConfig", cfg)
		c.Set("storage", stg)
		c.Next()
	}
}

// AuthAPI enforces basic auth when credentials are configured, otherwise
// it is a passthrough.
func AuthAPI(cfg *config.Config) gin.HandlerFunc {
	auth := cfg.Server.BasicAuth
	if auth.Username == "" {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return gin.BasicAuth(gin.Accounts{auth.Username: auth.Password})
}

func CorsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
	}
	return cors.New(cfg)
}

func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if fullPath := c.FullPath(); fullPath != "" {
			ctx = contextutils.WithAPI(ctx, fullPath)
		}

		if functionID := c.Param("functionID"); functionID != "" {
			ctx = contextutils.WithFunction(ctx, functionID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		ctx := param.Request.Context()
		logging.Infof(ctx, "HTTP %s %s - %d %dbytes %s",
			param.Method,
			param.Path,
			param.StatusCode,
			param.BodySize,
			param.Latency,
		)
		return ""
	})
}

func Common(mgr controller.Manager, cfg *config.Config, stg *storage.Storage) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		Logger(),
		gin.Recovery(),
		CorsMiddleware(),
		Dependencies(mgr, cfg, stg),
		RequestContext(),
	}
}
