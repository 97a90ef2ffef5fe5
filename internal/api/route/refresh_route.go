package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/czkultura/dataserve/internal/api/controller"
	"github.com/czkultura/dataserve/internal/api/middleware"
	"github.com/czkultura/dataserve/internal/app"
)

// NewRefreshRouter sets up the refresh status board and the manual trigger.
// Manual runs ride on the app lifecycle context so a closed request cannot
// cancel them.
func NewRefreshRouter(timeout time.Duration, group *gin.RouterGroup, appCtx *app.App) {
	rc := controller.NewRefreshController(appCtx.BaseCtx, appCtx.Refresh)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	group.GET("refresh/status", timeoutMiddleware, rc.Status)
	group.POST("refresh/run", timeoutMiddleware, rc.Run)
}
