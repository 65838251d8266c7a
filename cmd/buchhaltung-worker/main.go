package main

import (
	"context"
	"errors"
	"os"
	"time"

	"buchhaltung/internal/amqp"
	"buchhaltung/internal/cli"
	"buchhaltung/internal/config"
	"buchhaltung/internal/livingapps"
	"buchhaltung/internal/log"
	"buchhaltung/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	boot := config.Load()
	logger := cli.SetupLogger(boot.LogLevel, boot.LogFormat).WithComponent(log.ComponentWorker)
	logger.Info("Starting buchhaltung-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)

	// Local copy the mirror writes into
	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	source, err := livingapps.New(livingapps.Config{
		BaseURL: cfg.LivingAppsBaseURL,
		Apps: livingapps.AppIDs{
			CostGroups: cfg.AppIDCostGroups,
			Receipts:   cfg.AppIDReceipts,
			Handovers:  cfg.AppIDHandovers,
		},
		Session: cfg.LivingAppsSession,
		Token:   cfg.LivingAppsToken,
	})
	if err != nil {
		logger.Error("Failed to initialize Living Apps client", log.FieldError, err)
		os.Exit(1)
	}

	mirror := worker.NewMirror(source, repo, cfg.MirrorTimeout)
	scheduler := worker.NewScheduler(mirror)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, relying on scheduled syncs only", log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	} else {
		logger.Info("AMQP disabled - local copy is refreshed on schedule only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("Error stopping scheduler", log.FieldError, err)
		}
	})

	if err := scheduler.Start(ctx, cfg.MirrorSchedule); err != nil {
		logger.Error("Failed to start mirror scheduler", log.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeRecordChanged(ctx, mirror.HandleRecordChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	logger.Info("Worker running",
		"schedule", cfg.MirrorSchedule,
		"sqlite_db", cfg.SQLiteDBPath,
		"amqp", amqpClient != nil)

	cli.WaitForShutdown(ctx, done)
}
