package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/park285/baahaus/internal/config"
	"github.com/park285/baahaus/internal/chessbuilder"
	"github.com/park285/baahaus/internal/httpx"
	"github.com/park285/baahaus/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	deps, err := chessbuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("chess init error", zap.Error(err))
	}

	server := httpx.NewServer(deps.Service, deps.Formatter, cfg.SiteRoot, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Listen(cfg.SiteAddr) }()

	banner := deps.Catalog.RenderOr("site.banner", map[string]any{"Addr": cfg.SiteAddr}, "baa.haus development server running at "+cfg.SiteAddr)
	logger.Info(banner, zap.String("site_root", cfg.SiteRoot))

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown requested", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Close(ctx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}
	if err := deps.Close(); err != nil {
		logger.Warn("chess shutdown error", zap.Error(err))
	}
}
