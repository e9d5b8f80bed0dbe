// Package db opens the configured storage backend and builds the praxus
// stores on top of it.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"praxus/internal/config"
	"praxus/pkg/assistant"
	"praxus/pkg/logx"
	"praxus/pkg/schedule"
	"praxus/pkg/task"
)

// Backend drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB is an open storage backend. Exactly one of SQL and Pool is set.
type DB struct {
	Driver string
	SQL    *sql.DB
	Pool   *pgxpool.Pool
}

// Stores are the persistence interfaces used by praxus.
type Stores struct {
	Tasks    task.Store
	Schedule schedule.Store
	Messages assistant.MessageStore
}

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, log logx.Logger) (*DB, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverSQLite, "sqlite3":
		return openSQLite(ctx, cfg, log)
	case DriverPostgres, "pgx":
		return openPostgres(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openSQLite(ctx context.Context, cfg config.StorageConfig, log logx.Logger) (*DB, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; planning runs queue on the connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.BusyTimeout, 0)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	if busy > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	}
	for _, p := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, p); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	log.Info("storage opened", logx.String("driver", DriverSQLite), logx.String("path", path))
	return &DB{Driver: DriverSQLite, SQL: sqlDB}, nil
}

func openPostgres(ctx context.Context, cfg config.StorageConfig, log logx.Logger) (*DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	log.Info("storage opened", logx.String("driver", DriverPostgres))
	return &DB{Driver: DriverPostgres, Pool: pool}, nil
}

// Stores builds the stores for the open backend.
func (d *DB) Stores() Stores {
	if d.Pool != nil {
		return Stores{
			Tasks:    task.NewPgStore(d.Pool),
			Schedule: schedule.NewPgStore(d.Pool),
			Messages: assistant.NewPgMessageStore(d.Pool),
		}
	}
	return Stores{
		Tasks:    task.NewSQLiteStore(d.SQL),
		Schedule: schedule.NewSQLiteStore(d.SQL),
		Messages: assistant.NewSQLiteMessageStore(d.SQL),
	}
}

// EnsureTables creates every table praxus uses.
func (s Stores) EnsureTables(ctx context.Context) error {
	if err := s.Tasks.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure tasks table: %w", err)
	}
	if err := s.Schedule.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure schedule table: %w", err)
	}
	if err := s.Messages.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure chat table: %w", err)
	}
	return nil
}

// Close releases the backend.
func (d *DB) Close() error {
	if d == nil {
		return nil
	}
	if d.Pool != nil {
		d.Pool.Close()
		return nil
	}
	if d.SQL != nil {
		return d.SQL.Close()
	}
	return nil
}
