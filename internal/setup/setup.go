// Package setup provides operator checks for a CardioML deployment: backend
// reachability, result store connectivity and configuration validity.
package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cardioml-web/internal/database"
	"github.com/cardioml-web/internal/domain"
	"github.com/cardioml-web/internal/store"
	"github.com/sirupsen/logrus"
)

const probeTimeout = 5 * time.Second

// Status summarizes the deployment as seen from this host.
type Status struct {
	BackendURL     string
	BackendStatus  string
	ModelLoaded    bool
	BackendError   string
	StoreDriver    string
	StoreReachable bool
	StoreDetail    string
	Issues         []string
}

// Healthy reports whether no issues were found.
func (s *Status) Healthy() bool {
	return len(s.Issues) == 0
}

// GetStatus probes the prediction backend and the configured result store.
func GetStatus(ctx context.Context, cfg *domain.Config, backend domain.PredictionService, databaseURL string, logger *logrus.Logger) *Status {
	status := &Status{
		BackendURL:  cfg.Backend.BaseURL,
		StoreDriver: cfg.Store.Driver,
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	health, err := backend.Health(probeCtx)
	switch {
	case err != nil:
		status.BackendStatus = "unreachable"
		status.BackendError = err.Error()
		status.Issues = append(status.Issues, fmt.Sprintf("Prediction backend at %s is unreachable", cfg.Backend.BaseURL))
	default:
		status.BackendStatus = health.Status
		status.ModelLoaded = health.ModelLoaded
		if !health.ModelLoaded {
			status.Issues = append(status.Issues, "Prediction backend is up but reports no model loaded")
		}
	}

	detail, err := probeStore(probeCtx, cfg, databaseURL, logger)
	status.StoreDetail = detail
	if err != nil {
		status.StoreDetail = err.Error()
		status.Issues = append(status.Issues, fmt.Sprintf("Result store (%s) is not usable", cfg.Store.Driver))
	} else {
		status.StoreReachable = true
	}

	return status
}

// probeStore checks connectivity for the configured driver without creating or
// migrating anything.
func probeStore(ctx context.Context, cfg *domain.Config, databaseURL string, logger *logrus.Logger) (string, error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case "", store.DriverMemory:
		return "in-process, results are lost on restart", nil

	case store.DriverSQLite:
		dir := filepath.Dir(cfg.Store.SQLitePath)
		if _, err := os.Stat(cfg.Store.SQLitePath); err == nil {
			return cfg.Store.SQLitePath, nil
		}
		if _, err := os.Stat(dir); err != nil {
			return "", fmt.Errorf("directory %s does not exist: %w", dir, err)
		}
		return cfg.Store.SQLitePath + " (created on first run)", nil

	case store.DriverPostgres:
		db, err := database.NewConnection(ctx, database.ConfigFrom(cfg.Database), logger)
		if err != nil {
			return "", err
		}
		defer db.Close()

		runner, err := database.NewMigrationRunner(databaseURL, logger)
		if err != nil {
			return "", err
		}
		defer runner.Close()
		schema := runner.Status()
		if schema.Dirty {
			return "", fmt.Errorf("schema %s", schema)
		}
		return fmt.Sprintf("%s:%d, schema %s", cfg.Database.Host, cfg.Database.Port, schema), nil

	case store.DriverRedis:
		rs, err := store.NewRedisStore(cfg.Cache, cfg.Store.TTL)
		if err != nil {
			return "", err
		}
		defer rs.Close()
		return "redis reachable", nil

	default:
		return "", fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
