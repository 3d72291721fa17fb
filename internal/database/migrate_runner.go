package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"credledger/internal/observability"

	"gorm.io/gorm"
)

// MigrationStore defines the interface for tracking and applying migrations.
type MigrationStore interface {
	GetAppliedMigrations(ctx context.Context) ([]int, error)
	ApplyMigration(ctx context.Context, m Migration) error
	RemoveMigration(ctx context.Context, m Migration) error
}

type migrationStore struct {
	db *gorm.DB
}

// MigrationLog represents a record of an applied migration in the database.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// NewMigrationStore creates a new MigrationStore instance.
func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &migrationStore{db: db}
}

func (s *migrationStore) GetAppliedMigrations(ctx context.Context) ([]int, error) {
	var versions []int
	if err := s.db.WithContext(ctx).Model(&MigrationLog{}).Order("version ASC").Pluck("version", &versions).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	return versions, nil
}

// ApplyMigration runs the up script and records it in one transaction.
func (s *migrationStore) ApplyMigration(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range splitStatements(m.UpScript) {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
			}
		}
		if err := tx.Create(&MigrationLog{Version: m.Version, Name: m.Name}).Error; err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		observability.Logger.Info("migration applied", slog.Int("version", m.Version), slog.String("name", m.Name))
		return nil
	})
}

// RemoveMigration runs the down script and drops the log entry.
func (s *migrationStore) RemoveMigration(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range splitStatements(m.DownScript) {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to run rollback SQL for migration %d (%s): %w", m.Version, m.Name, err)
			}
		}
		if err := tx.Where("version = ?", m.Version).Delete(&MigrationLog{}).Error; err != nil {
			return fmt.Errorf("failed to remove migration record %d: %w", m.Version, err)
		}
		observability.Logger.Info("migration rolled back", slog.Int("version", m.Version))
		return nil
	})
}

// RunMigrations ensures the migration log table exists and applies all pending migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	const ensureMigrationLogTableSQL = `
CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_migration_logs_applied_at ON migration_logs (applied_at);`
	for _, stmt := range splitStatements(ensureMigrationLogTableSQL) {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to ensure migration logs table: %w", err)
		}
	}

	store := NewMigrationStore(db)
	applied, err := store.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if err := validateAppliedVersions(applied, migrations); err != nil {
		return err
	}

	for _, m := range migrations {
		if slices.Contains(applied, m.Version) {
			observability.Logger.Debug("migration already applied", slog.Int("version", m.Version), slog.String("name", m.Name))
			continue
		}
		observability.Logger.Info("applying migration", slog.Int("version", m.Version), slog.String("name", m.Name))
		if err := store.ApplyMigration(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func validateAppliedVersions(applied []int, registered []Migration) error {
	known := make(map[int]struct{}, len(registered))
	for _, m := range registered {
		known[m.Version] = struct{}{}
	}

	var unknown []string
	for _, version := range applied {
		if _, ok := known[version]; !ok {
			unknown = append(unknown, fmt.Sprintf("%06d", version))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf("migration_logs contains unknown versions not present in code: %s", strings.Join(unknown, ", "))
}

// RollbackMigration reverts a specific migration by version number.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	store := NewMigrationStore(db)
	applied, err := store.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %d has not been applied", version)
	}

	observability.Logger.Info("rolling back migration", slog.Int("version", version), slog.String("name", m.Name))
	return store.RemoveMigration(ctx, *m)
}
