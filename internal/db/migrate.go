package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Migration is one versioned schema change, loaded from a
// NNN_description.sql file.
type Migration struct {
	Version     int
	Description string
	SQL         string
	Filename    string
}

// Migrator applies pending schema migrations in version order, each in
// its own transaction, recording progress in schema_version.
type Migrator struct {
	db  *sql.DB
	dir string
}

// NewMigrator creates a migration runner over the given directory.
func NewMigrator(db *sql.DB, dir string) *Migrator {
	return &Migrator{db: db, dir: dir}
}

func (m *Migrator) ensureSchemaVersionTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW(),
			description TEXT
		);
	`
	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *Migrator) currentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

func (m *Migrator) loadMigrations() ([]Migration, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		if strings.HasSuffix(entry.Name(), "_down.sql") {
			continue
		}

		// Keep resolved paths inside the migrations directory
		filePath := filepath.Clean(filepath.Join(m.dir, entry.Name()))
		if !strings.HasPrefix(filePath, filepath.Clean(m.dir)) {
			return nil, fmt.Errorf("invalid migration file path: %s", entry.Name())
		}
		content, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		filename := entry.Name()
		var version int
		var description string
		if _, err := fmt.Sscanf(filename, "%d_%s", &version, &description); err != nil {
			return nil, fmt.Errorf("invalid migration filename format: %s (expected: NNN_description.sql)", filename)
		}
		description = strings.TrimSuffix(description, ".sql")
		description = strings.ReplaceAll(description, "_", " ")

		migrations = append(migrations, Migration{
			Version:     version,
			Description: description,
			SQL:         string(content),
			Filename:    filename,
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// Migrate applies all pending migrations.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureSchemaVersionTable(ctx); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current, err := m.currentVersion(ctx)
	if err != nil {
		return err
	}

	migrations, err := m.loadMigrations()
	if err != nil {
		return err
	}

	pending := make([]Migration, 0, len(migrations))
	for _, migration := range migrations {
		if migration.Version > current {
			pending = append(pending, migration)
		}
	}

	if len(pending) == 0 {
		fmt.Printf("Database is up to date (version %d)\n", current)
		return nil
	}

	fmt.Printf("Current schema version: %d\n", current)
	fmt.Printf("Found %d pending migration(s)\n", len(pending))

	for _, migration := range pending {
		if err := m.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}

	final, _ := m.currentVersion(ctx)
	fmt.Printf("Migration complete. Current version: %d\n", final)

	return nil
}

func (m *Migrator) applyMigration(ctx context.Context, migration Migration) error {
	fmt.Printf("Applying migration %d: %s\n", migration.Version, migration.Description)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version, description) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING",
		migration.Version,
		migration.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// Status returns the current schema version and the list of pending
// migrations without applying anything.
func (m *Migrator) Status(ctx context.Context) (int, []Migration, error) {
	if err := m.ensureSchemaVersionTable(ctx); err != nil {
		return 0, nil, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current, err := m.currentVersion(ctx)
	if err != nil {
		return 0, nil, err
	}

	migrations, err := m.loadMigrations()
	if err != nil {
		return 0, nil, err
	}

	pending := make([]Migration, 0, len(migrations))
	for _, migration := range migrations {
		if migration.Version > current {
			pending = append(pending, migration)
		}
	}

	return current, pending, nil
}
