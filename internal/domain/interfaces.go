package domain

import (
	"context"
)

// PredictionService is the external prediction backend
type PredictionService interface {
	Health(ctx context.Context) (*HealthStatus, error)
	ModelInfo(ctx context.Context) (*ModelInfo, error)
	Predict(ctx context.Context, req *PredictionRequest) (*PredictionResult, error)
}

// ResultStore persists the last assessment per scope (one browser session).
//
// Save overwrites any prior pair for the scope atomically. Load reports
// found=false when nothing was saved or the stored data can no longer be read.
type ResultStore interface {
	Save(ctx context.Context, scope string, record *AssessmentRecord) error
	Load(ctx context.Context, scope string) (*AssessmentRecord, bool, error)
	Clear(ctx context.Context, scope string) error
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetBackendConfig() *BackendConfig
	GetStoreConfig() *StoreConfig
	GetDatabaseConfig() *DatabaseConfig
	Validate() error
}
