// Package main wires together the card service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/linkcard/linkcard/internal/api"
	"github.com/linkcard/linkcard/internal/card"
	"github.com/linkcard/linkcard/internal/clock/system"
	"github.com/linkcard/linkcard/internal/config"
	"github.com/linkcard/linkcard/internal/export"
	"github.com/linkcard/linkcard/internal/favicon"
	"github.com/linkcard/linkcard/internal/generator"
	"github.com/linkcard/linkcard/internal/logging"
	"github.com/linkcard/linkcard/internal/metadata"
	"github.com/linkcard/linkcard/internal/metrics"
	"github.com/linkcard/linkcard/internal/proxy"
	"github.com/linkcard/linkcard/internal/qr"
	"github.com/linkcard/linkcard/internal/render"
	"github.com/linkcard/linkcard/internal/screenshot"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	store := card.NewStore()
	resolver := proxy.NewResolver(cfg.Proxy.Base, clock)

	faviconServices := make([]favicon.Service, 0, len(cfg.Favicon.Services))
	for _, svc := range cfg.Favicon.Services {
		faviconServices = append(faviconServices, favicon.Service{
			Name:        svc.Name,
			URLTemplate: svc.URLTemplate,
		})
	}
	icons := favicon.New(favicon.Config{
		Services:     faviconServices,
		MinIconBytes: cfg.Favicon.MinIconBytes,
		MaxIconBytes: int64(cfg.Favicon.MaxIconBytes),
		Timeout:      cfg.FaviconTimeout(),
		HostQPS:      cfg.Favicon.HostQPS,
	}, resolver, logger.Named("favicon"))

	meta := metadata.New(
		metadata.NewAIClient(metadata.AIConfig{
			Endpoint: cfg.Metadata.AI.Endpoint,
			APIKey:   cfg.Metadata.AI.APIKey,
			Timeout:  cfg.AITimeout(),
		}),
		metadata.NewScraper(metadata.ScraperConfig{
			UserAgent: cfg.Metadata.Scrape.UserAgent,
			Timeout:   cfg.ScrapeTimeout(),
		}),
		logger.Named("metadata"),
	)

	shots := screenshot.New(screenshot.Config{
		PrimaryBase:   cfg.Screenshot.PrimaryBase,
		PrimaryKey:    cfg.Screenshot.PrimaryKey,
		BackupBase:    cfg.Screenshot.BackupBase,
		DeviceScale:   cfg.Screenshot.DeviceScale,
		SettleDelayMS: cfg.Screenshot.SettleDelayMS,
	}, resolver)

	codes := qr.New(qr.Config{Size: cfg.QR.Size})

	gen := generator.New(store, meta, icons, codes, shots, clock, cfg.Viewports, logger.Named("generator"))

	surface, err := render.NewSurface(cfg.ProbeTimeout(), logger.Named("render"))
	if err != nil {
		logger.Fatal("render surface init failed", zap.Error(err))
	}

	var exporter api.CardExporter
	if cfg.Export.Enabled {
		chromeExporter, err := export.New(export.Config{
			ViewURL:           cfg.Server.BaseURL + "/card/view",
			MaxParallel:       cfg.Export.MaxParallel,
			NavigationTimeout: cfg.ExportNavTimeout(),
			SettleDelay:       time.Duration(cfg.Export.SettleDelayMS) * time.Millisecond,
			DownloadScale:     cfg.Export.DownloadScale,
			PreviewScale:      cfg.Export.PreviewScale,
		}, logger.Named("export"))
		if err != nil {
			logger.Warn("exporter init failed, export disabled", zap.Error(err))
		} else {
			defer chromeExporter.Close()
			exporter = chromeExporter
		}
	}

	apiServer := api.NewServer(store, gen, surface, exporter, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
