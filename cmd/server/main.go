package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"notepush.app/notepush/common/id"
	"notepush.app/notepush/common/logger"
	"notepush.app/notepush/common/otel"
	"notepush.app/notepush/core/config"
	"notepush.app/notepush/internal/clock"
	"notepush.app/notepush/internal/github"
	"notepush.app/notepush/internal/http/handler/webhook"
	"notepush.app/notepush/internal/http/middleware"
	httprouter "notepush.app/notepush/internal/http/router"
	"notepush.app/notepush/internal/service"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "note-push starting",
		"env", cfg.Env,
		"repo", cfg.Store.Owner+"/"+cfg.Store.Repo,
		"branch", cfg.Store.Branch,
		"template", cfg.Notes.PathTemplate,
	)

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	store := github.NewClient(cfg.Store)
	appender := service.NewAppendService(
		store,
		clock.SystemClock{},
		cfg.Notes.PathTemplate,
		service.DefaultRetryPolicy(),
		slog.Default(),
	)
	lineHandler := webhook.NewLineWebhookHandler(cfg.Line.ChannelSecret, appender)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, lineHandler)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, lineHandler *webhook.LineWebhookHandler) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, lineHandler)

	return router
}

const banner = `
███╗   ██╗ ██████╗ ████████╗███████╗      ██████╗ ██╗   ██╗███████╗██╗  ██╗
████╗  ██║██╔═══██╗╚══██╔══╝██╔════╝      ██╔══██╗██║   ██║██╔════╝██║  ██║
██╔██╗ ██║██║   ██║   ██║   █████╗  █████╗██████╔╝██║   ██║███████╗███████║
██║╚██╗██║██║   ██║   ██║   ██╔══╝  ╚════╝██╔═══╝ ██║   ██║╚════██║██╔══██║
██║ ╚████║╚██████╔╝   ██║   ███████╗      ██║     ╚██████╔╝███████║██║  ██║
╚═╝  ╚═══╝ ╚═════╝    ╚═╝   ╚══════╝      ╚═╝      ╚═════╝ ╚══════╝╚═╝  ╚═╝
`
