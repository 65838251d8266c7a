package backend

import (
	"context"

	"buchhaltung/internal/records"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend records.Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Living Apps
	BaseURL         string
	Session         string
	Token           string
	AppIDCostGroups string
	AppIDReceipts   string
	AppIDHandovers  string

	// SQLite
	SQLiteDBPath string

	// AMQP change events, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory backend seed directory
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	LivingAppsBackend BackendType = "livingapps"
	SQLiteBackend     BackendType = "sqlite"
	MemoryBackend     BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case LivingAppsBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
