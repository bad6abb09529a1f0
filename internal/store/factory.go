package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/cardioml-web/internal/database"
	"github.com/cardioml-web/internal/domain"
	"github.com/sirupsen/logrus"
)

// Store drivers accepted by New.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// New opens the result store selected by cfg.Store.Driver. For the postgres
// driver the pending migrations are applied first and the pool is closed with
// the store.
func New(ctx context.Context, cfg *domain.Config, databaseURL string, logger *logrus.Logger) (domain.ResultStore, error) {
	driver := strings.ToLower(cfg.Store.Driver)
	log := logger.WithField("driver", driver)

	switch driver {
	case "", DriverMemory:
		log.WithField("max_sessions", cfg.Store.MaxSessions).Info("Using in-memory result store")
		return NewMemoryStore(cfg.Store), nil

	case DriverSQLite:
		s, err := NewSQLiteStore(cfg.Store.SQLitePath, cfg.Store.TTL)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		log.WithField("path", cfg.Store.SQLitePath).Info("Using SQLite result store")
		return s, nil

	case DriverPostgres:
		if err := database.EnsureSchema(ctx, databaseURL, logger); err != nil {
			return nil, err
		}

		db, err := database.NewConnection(ctx, database.ConfigFrom(cfg.Database), logger)
		if err != nil {
			return nil, err
		}
		s, err := NewPostgresStore(db.SQL(), cfg.Store.TTL)
		if err != nil {
			db.Close()
			return nil, err
		}
		log.Info("Using PostgreSQL result store")
		return &pooledStore{SQLStore: s, db: db}, nil

	case DriverRedis:
		s, err := NewRedisStore(cfg.Cache, cfg.Store.TTL)
		if err != nil {
			return nil, err
		}
		log.Info("Using Redis result store")
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

// pooledStore ties the pgx pool's lifetime to the store.
type pooledStore struct {
	*SQLStore
	db *database.DB
}

// Health pings the underlying pool.
func (p *pooledStore) Health(ctx context.Context) error {
	return p.db.Health(ctx)
}

func (p *pooledStore) Close() error {
	p.db.Close()
	return nil
}
