package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vantora/guardian/internal/actions"
	"github.com/vantora/guardian/internal/api"
	"github.com/vantora/guardian/internal/capture"
	"github.com/vantora/guardian/internal/collector"
	"github.com/vantora/guardian/internal/config"
	"github.com/vantora/guardian/internal/intercept"
	"github.com/vantora/guardian/internal/metrics"
	"github.com/vantora/guardian/internal/privacy"
	"github.com/vantora/guardian/internal/session"
	"github.com/vantora/guardian/internal/store"
	"github.com/vantora/guardian/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting guardian agent", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	sessionManager := session.NewManager(cfg.Auth.RefreshURL, cfg.Collector.Timeout, logger)
	if access := os.Getenv("GUARDIAN_ACCESS_TOKEN"); access != "" {
		sessionManager.SetTokens(access, os.Getenv("GUARDIAN_REFRESH_TOKEN"))
	}

	var screen capture.Screen
	var navigator actions.Navigator
	if cfg.Capture.Enabled && cfg.Capture.DevtoolsURL != "" {
		browser := rod.New().ControlURL(cfg.Capture.DevtoolsURL)
		if err := browser.Connect(); err != nil {
			logger.Warn("browser session unavailable, captures disabled", slog.Any("error", err))
		} else {
			defer browser.Close()
			pages, err := browser.Pages()
			if err != nil || len(pages) == 0 {
				logger.Warn("no browser page to attach to, captures disabled", slog.Any("error", err))
			} else {
				page := pages[0]
				screen = capture.NewRodScreen(page, cfg.Capture.Scale, cfg.Capture.Quality, logger)
				navigator = capture.NewRodNavigator(page, cfg.UI.HomeURL, cfg.UI.SignInURL, logger)
			}
		}
	}

	var capturer store.Capturer
	if screen != nil {
		capturer = capture.NewCapturer(screen, cfg.Capture.Timeout, logger)
	}

	collectorClient := collector.NewClient(
		cfg.Collector.BaseURL,
		cfg.Collector.IncidentsPath,
		cfg.Collector.Timeout,
		sessionManager,
		privacy.NewHasher(nil),
		logger,
	)

	incidentStore := store.New(capturer, collectorClient, sessionManager, logger)
	registry := actions.NewRegistry(incidentStore, sessionManager, navigator, actions.DefaultNavigationDelay, logger)
	hooks := intercept.New(incidentStore, logger)

	handler := api.NewHandler(incidentStore, registry, collectorClient.Latencies(), logger)
	router := api.NewRouter(handler, sessionManager, hooks.Middleware())

	server, err := api.NewServer(cfg.Server, router)
	if err != nil {
		logger.Error("failed to create panel server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hooks.Go(func() {
		select {
		case <-sessionManager.OnSessionEnd():
			logger.Info("session ended")
		case <-ctx.Done():
		}
	})

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("panel server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("guardian agent stopped")
}
