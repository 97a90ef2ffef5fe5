package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/czkultura/dataserve/internal/api/controller"
	"github.com/czkultura/dataserve/internal/api/middleware"
	"github.com/czkultura/dataserve/internal/app"
)

// NewDatasetRouter sets up the registry listing and the per-dataset accessor.
func NewDatasetRouter(timeout time.Duration, group *gin.RouterGroup, appCtx *app.App) {
	dc := controller.NewDatasetController(appCtx.Registry, appCtx.Service, appCtx.Watcher)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	group.GET("datasets", timeoutMiddleware, dc.List)
	group.GET("dataset/:name", timeoutMiddleware, dc.Get)
}
