package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/genluna-medchain/internal/config"
)

// Querier is the subset of pgx shared by the pool and pgxmock
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

var _ Querier = (*pgxpool.Pool)(nil)

// JournalTables are created by the journal migrations and read by every binary
var JournalTables = []string{"ledger_sync_attempts", "ledger_sync_state"}

// ErrJournalSchemaMissing is returned when the pool connects to a database
// that has not been migrated yet
var ErrJournalSchemaMissing = errors.New("sync journal schema is missing")

// PostgresDB owns the connection pool of the sync journal
type PostgresDB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresDB opens the journal pool and checks that the journal tables
// exist. It does not migrate; see MigrateJournal.
func NewPostgresDB(ctx context.Context, logger *slog.Logger, cfg *config.PostgresConfig) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL connection string: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	if err := checkJournalSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("Connected to PostgreSQL",
		"database", poolConfig.ConnConfig.Database,
		"max_conns", cfg.MaxConns,
	)

	return &PostgresDB{
		pool:   pool,
		logger: logger,
	}, nil
}

func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping reports whether the journal database is reachable
func (db *PostgresDB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	return nil
}

func (db *PostgresDB) Close() {
	db.pool.Close()
	db.logger.Info("Closed PostgreSQL connection")
}

func checkJournalSchema(ctx context.Context, q Querier) error {
	rows, err := q.Query(ctx, `SELECT t FROM unnest($1::text[]) AS t WHERE to_regclass(t) IS NULL`, JournalTables)
	if err != nil {
		return fmt.Errorf("failed to inspect journal schema: %w", err)
	}
	missing, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("failed to inspect journal schema: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s (run ledger_gateway or `ledgerctl migrate`)", ErrJournalSchemaMissing, strings.Join(missing, ", "))
	}
	return nil
}
