package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/enrichman/httpgrace"

	"github.com/czkultura/dataserve/internal/api/route"
	appctx "github.com/czkultura/dataserve/internal/app"
	"github.com/czkultura/dataserve/internal/config"
	"github.com/czkultura/dataserve/internal/dataset"
	"github.com/czkultura/dataserve/internal/logger"
	"github.com/czkultura/dataserve/internal/probe"
	"github.com/czkultura/dataserve/internal/snapshot"
)

func main() {
	// Best effort; deployments set real environment variables.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}

	logger.SetLevel(cfg.Misc.LogLevel)
	logger.WithComponent("main").Infof("serving on port %d, snapshots in %s", cfg.Server.Port, cfg.Data.Dir)

	registry, err := dataset.NewRegistry(cfg.Data.Dir)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot build dataset registry: %v", err)
	}

	app, err := appctx.New(cfg, registry, snapshot.NewStore(), probe.NewHTTPProber())
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init app: %v", err)
	}
	defer app.Shutdown()

	if err := app.StartBackground(); err != nil {
		logger.WithComponent("main").Fatalf("cannot start background workers: %v", err)
	}

	gin.SetMode(cfg.Misc.GinMode)
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()

	r := route.SetupRoutes(app)
	srv := createGraceHTTPServer(app, r)

	if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithComponent("main").Fatal(err)
	}
}

// createGraceHTTPServer wraps the gin engine in a graceful server. The
// before-shutdown hook cancels the app context, which stops the snapshot
// watcher and deregisters the refresh loop before connections drain.
func createGraceHTTPServer(app *appctx.App, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))
	serverConfig := app.Config.Server

	return httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Info("shutting down, stopping background workers....")
			app.Shutdown()
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return app.BaseCtx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), "[http] ", log.LstdFlags)
			},
		),
	)
}
