package middleware

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	honeybadger "github.com/honeybadger-io/honeybadger-go"

	"github.com/czkultura/dataserve/internal/logger"
)

// Honeybadger reports panics and error responses to Honeybadger. Without an
// API key in the environment it degrades to a no-op, so local development
// never needs an account.
func Honeybadger() gin.HandlerFunc {
	log := logger.WithComponent("honeybadger")

	apiKey := os.Getenv("HONEYBADGER_API_KEY")
	if apiKey == "" {
		log.Info("error reporting disabled; set HONEYBADGER_API_KEY to enable")
		return func(c *gin.Context) { c.Next() }
	}

	honeybadger.Configure(honeybadger.Configuration{
		APIKey: apiKey,
		Env:    os.Getenv("GO_ENV"),
	})
	log.Info("error reporting enabled")

	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				honeybadger.Notify(fmt.Sprintf("Panic: %s %s", c.Request.Method, c.Request.URL.Path),
					c.Request, honeybadger.Context{"stack": string(debug.Stack())}, honeybadger.Tags{"panic", "http"})
				log.Errorf("recovered from panic, notified Honeybadger: %v", rec)
				panic(rec) // re-raise so gin.Recovery still writes the 500
			}
		}()

		c.Next()

		// 404s are expected noise (unknown dataset names); everything else
		// in the 4xx/5xx range is worth a notice.
		status := c.Writer.Status()
		if status < 400 || status == 404 {
			return
		}
		if status >= 500 {
			honeybadger.Notify(fmt.Sprintf("Error: HTTP %d: %s %s", status, c.Request.Method, c.Request.URL.Path),
				c.Request, honeybadger.Tags{"5XX", "http"})
		} else {
			honeybadger.Notify(fmt.Sprintf("Warning: HTTP %d: %s %s", status, c.Request.Method, c.Request.URL.Path),
				honeybadger.Tags{"4XX", "http"})
		}
		log.Debugf("reported HTTP %d for %s %s", status, c.Request.Method, c.Request.URL.Path)
	}
}
