package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver

	"github.com/genluna-medchain/internal/config"
)

var (
	errNoMigrationsPath = errors.New("migrations path cannot be empty")
	errNoDatabaseURL    = errors.New("database URL cannot be empty")
)

// MigrateJournal brings the sync journal schema up to date and returns the
// resulting schema version. A dirty schema is reported as an error and left
// for an operator to resolve.
func MigrateJournal(logger *slog.Logger, cfg *config.PostgresConfig) (uint, error) {
	if cfg.URL == "" {
		return 0, errNoDatabaseURL
	}
	source, err := migrationSource(cfg.MigrationsPath)
	if err != nil {
		return 0, err
	}

	m, err := migrate.New(source, cfg.URL)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if sourceErr != nil || dbErr != nil {
			logger.Warn("Failed to close migrator", "source_error", sourceErr, "database_error", dbErr)
		}
	}()

	before, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to read journal schema version: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read journal schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("journal schema version %d is dirty", version)
	}

	logger.Info("Journal schema is current", "version", version, "previous_version", before)
	return version, nil
}

// migrationSource turns a directory into a file:// source URL. Relative
// directories resolve against the working directory.
func migrationSource(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "file://" {
		return "", errNoMigrationsPath
	}
	if strings.HasPrefix(path, "file://") {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve migrations path %q: %w", path, err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}
