package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"buchhaltung/internal/backend"
	"buchhaltung/internal/cli"
	"buchhaltung/internal/config"
	"buchhaltung/internal/dashboard"
	"buchhaltung/internal/export"
	apphttp "buchhaltung/internal/http"
	"buchhaltung/internal/log"
)

func main() {
	cli.LoadEnvFile()

	// Logging is configured before validation so config errors use the
	// requested format.
	boot := config.Load()
	logger := cli.SetupLogger(boot.LogLevel, boot.LogFormat).WithComponent(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Failed to create backend config", log.FieldError, err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	dash := dashboard.New(result.Backend, dashboard.WithLogger(logger))

	deps := apphttp.Deps{
		Dashboard:          dash,
		Probe:              result.Backend,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}

	if cfg.ExportEnabled() {
		exporter, err := export.NewSheetsExporterFromCredentials(context.Background(),
			cfg.GoogleSpreadsheetID, cfg.GoogleExportSheet,
			cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets export", log.FieldError, err)
			os.Exit(1)
		}
		deps.Sheets = exporter
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleExportSheet)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		logger.Error("Failed to create server", log.FieldError, err)
		os.Exit(1)
	}

	_, done := cli.GracefulShutdown(logger, 10*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting HTTP server", log.FieldOperation, log.OpStartup,
		"addr", srv.Addr,
		log.FieldBackend, cfg.DataBackend)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("HTTP server error", log.FieldError, err)
		os.Exit(1)
	}

	<-done
}
