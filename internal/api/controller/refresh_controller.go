package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/czkultura/dataserve/internal/logger"
	"github.com/czkultura/dataserve/internal/refresh"
)

// RefreshController exposes the refresh loop's status board and the manual
// trigger. Manual runs are detached onto baseCtx so they survive the request
// that started them.
type RefreshController struct {
	baseCtx context.Context
	loop    *refresh.Loop
}

func NewRefreshController(baseCtx context.Context, loop *refresh.Loop) *RefreshController {
	return &RefreshController{
		baseCtx: baseCtx,
		loop:    loop,
	}
}

// Status returns the loop state and the last completed run's results.
func (rc *RefreshController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, rc.loop.Status())
}

// Run kicks one refresh cycle in the background and answers immediately.
func (rc *RefreshController) Run(c *gin.Context) {
	id, err := rc.loop.StartManual(rc.baseCtx)
	if err != nil {
		if errors.Is(err, refresh.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "a refresh run is already in progress"})
			return
		}
		logger.WithComponent("refresh_controller").Errorf("manual refresh did not start: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start refresh"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": id, "status": "started"})
}
