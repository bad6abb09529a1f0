package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

// StateTable is the table holding each session's assessment state.
const StateTable = "assessment_state"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SchemaStatus describes the assessment_state schema in one database.
type SchemaStatus struct {
	Version  uint
	Latest   uint
	Dirty    bool
	Migrated bool
}

// Pending reports whether embedded migrations remain to be applied.
func (s SchemaStatus) Pending() bool {
	return !s.Migrated || s.Version < s.Latest
}

func (s SchemaStatus) String() string {
	switch {
	case !s.Migrated:
		return fmt.Sprintf("not migrated, latest is %d", s.Latest)
	case s.Dirty:
		return fmt.Sprintf("version %d is dirty", s.Version)
	case s.Pending():
		return fmt.Sprintf("version %d of %d", s.Version, s.Latest)
	default:
		return fmt.Sprintf("version %d (current)", s.Version)
	}
}

// MigrationRunner applies the embedded assessment_state migrations.
type MigrationRunner struct {
	migrate *migrate.Migrate
	latest  uint
	log     *logrus.Entry
}

// NewMigrationRunner creates a runner over the embedded migrations for a postgres:// URL.
func NewMigrationRunner(databaseURL string, logger *logrus.Logger) (*MigrationRunner, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}
	latest, err := latestVersion(src)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}

	return &MigrationRunner{
		migrate: m,
		latest:  latest,
		log:     logger.WithFields(logrus.Fields{"table": StateTable, "latest_version": latest}),
	}, nil
}

// EnsureSchema brings the assessment_state schema up to date before the
// store opens its pool.
func EnsureSchema(ctx context.Context, databaseURL string, logger *logrus.Logger) error {
	runner, err := NewMigrationRunner(databaseURL, logger)
	if err != nil {
		return err
	}
	if err := runner.Up(ctx); err != nil {
		runner.Close()
		return err
	}
	return runner.Close()
}

// latestVersion walks the migration source to find its highest version.
func latestVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("embedded migrations are empty: %w", err)
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}

// Up applies all pending migrations. Cancelling ctx stops after the
// migration in progress.
func (mr *MigrationRunner) Up(ctx context.Context) error {
	before := mr.Status()
	if before.Dirty {
		return fmt.Errorf("%s schema version %d is dirty, fix it before migrating", StateTable, before.Version)
	}
	if !before.Pending() {
		mr.log.WithField("version", before.Version).Debug("Assessment schema is current")
		return nil
	}

	stop := mr.stopOnCancel(ctx)
	defer stop()

	mr.log.WithField("from_version", before.Version).Info("Migrating assessment schema")
	if err := mr.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating %s up: %w", StateTable, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("migrating %s up: %w", StateTable, err)
	}

	mr.log.WithFields(logrus.Fields{
		"from_version": before.Version,
		"to_version":   mr.Status().Version,
	}).Info("Assessment schema migrated")
	return nil
}

// Down rolls back one migration.
func (mr *MigrationRunner) Down(ctx context.Context) error {
	before := mr.Status()
	if !before.Migrated {
		mr.log.Info("Assessment schema has nothing to roll back")
		return nil
	}

	stop := mr.stopOnCancel(ctx)
	defer stop()

	if err := mr.migrate.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rolling back %s: %w", StateTable, err)
	}

	after := mr.Status()
	mr.log.WithFields(logrus.Fields{
		"from_version": before.Version,
		"to_version":   after.Version,
		"migrated":     after.Migrated,
	}).Warn("Assessment schema rolled back")
	return nil
}

// stopOnCancel forwards ctx cancellation to golang-migrate.
func (mr *MigrationRunner) stopOnCancel(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			select {
			case mr.migrate.GracefulStop <- true:
			default:
			}
		case <-done:
		}
	}()
	return func() { close(done) }
}

// Status reports the applied version against the embedded latest. A database
// that was never migrated reports Migrated false.
func (mr *MigrationRunner) Status() SchemaStatus {
	status := SchemaStatus{Latest: mr.latest}
	version, dirty, err := mr.migrate.Version()
	if err != nil {
		if !errors.Is(err, migrate.ErrNilVersion) {
			mr.log.WithError(err).Warn("Could not read assessment schema version")
		}
		return status
	}
	status.Version = version
	status.Dirty = dirty
	status.Migrated = true
	return status
}

// Version returns the applied migration version.
func (mr *MigrationRunner) Version() (uint, bool, error) {
	return mr.migrate.Version()
}

// Close closes the migration runner.
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}
