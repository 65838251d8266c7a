package backend

import (
	"context"
	"fmt"
	"log/slog"

	"buchhaltung/internal/amqp"
	"buchhaltung/internal/livingapps"
	"buchhaltung/internal/log"
	"buchhaltung/internal/records"
	"buchhaltung/internal/records/memory"
	"buchhaltung/internal/services"
	"buchhaltung/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger.With(log.FieldComponent, log.ComponentBackend)}
}

// CreateBackend builds the configured store and wraps it in a
// services.RecordService that publishes change events when AMQP is set up.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store   records.Backend
		closers []func() error
		err     error
	)

	switch config.Type {
	case LivingAppsBackend:
		store, err = f.createLivingAppsBackend(config)
	case SQLiteBackend:
		var repo *storage.SQLiteRepository
		repo, err = f.createSQLiteBackend(config)
		if err == nil {
			store = repo
			closers = append(closers, repo.Close)
		}
	case MemoryBackend:
		store = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	publisher := f.createPublisher(ctx, config)
	service := services.NewRecordService(store, publisher, closers...)

	return &BackendResult{
		Backend: service,
		Cleanup: service.Close,
	}, nil
}

func (f *DefaultFactory) createLivingAppsBackend(config Config) (*livingapps.Client, error) {
	client, err := livingapps.New(livingapps.Config{
		BaseURL: config.BaseURL,
		Apps: livingapps.AppIDs{
			CostGroups: config.AppIDCostGroups,
			Receipts:   config.AppIDReceipts,
			Handovers:  config.AppIDHandovers,
		},
		Session: config.Session,
		Token:   config.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Living Apps client: %w", err)
	}

	f.logger.Info("Initialized Living Apps backend",
		"base_url", client.BaseURL(),
		"authenticated", config.Session != "" || config.Token != "")

	return client, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, refBase(config), refApp(config))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) *memory.Store {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store := memory.NewFromFiles(dataDir, memory.WithReferenceBase(refBase(config), refApp(config)))

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return store
}

// createPublisher returns nil when AMQP is not configured or unreachable;
// the record service then skips change events.
func (f *DefaultFactory) createPublisher(ctx context.Context, config Config) services.Publisher {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events", "error", err)
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

// References built by local backends point into the hosted workspace so
// they stay valid when records are mirrored back and forth.
func refBase(config Config) string {
	if config.BaseURL == "" {
		return livingapps.DefaultBaseURL
	}
	return config.BaseURL
}

func refApp(config Config) string {
	if config.AppIDCostGroups == "" {
		return livingapps.DefaultAppIDs().CostGroups
	}
	return config.AppIDCostGroups
}
