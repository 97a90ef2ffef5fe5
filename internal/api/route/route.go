package route

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/czkultura/dataserve/internal/api/middleware"
	"github.com/czkultura/dataserve/internal/app"
)

// SetupRoutes builds the gin engine: global middleware, the health check,
// and the /api surface.
func SetupRoutes(appCtx *app.App) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Honeybadger())
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(appCtx.Config.Server.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})

	api := r.Group("/api")

	timeout := appCtx.Config.Server.RequestTimeout

	NewDatasetRouter(timeout, api, appCtx)
	NewRefreshRouter(timeout, api, appCtx)

	return r
}
