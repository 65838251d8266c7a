package backend

import (
	"fmt"

	"buchhaltung/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		BaseURL:         appConfig.LivingAppsBaseURL,
		Session:         appConfig.LivingAppsSession,
		Token:           appConfig.LivingAppsToken,
		AppIDCostGroups: appConfig.AppIDCostGroups,
		AppIDReceipts:   appConfig.AppIDReceipts,
		AppIDHandovers:  appConfig.AppIDHandovers,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		DataDirectory: appConfig.DataDir,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case LivingAppsBackend:
		if c.BaseURL == "" {
			return fmt.Errorf("base URL is required for livingapps backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data"
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{LivingAppsBackend, SQLiteBackend, MemoryBackend}
}
