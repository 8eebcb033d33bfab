package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	webhookmigrations "github.com/goliatone/go-webhooks/migrations"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	defaultPingTimeout = 5 * time.Second
)

// ClientConfig satisfies the go-persistence-bun config contract for the
// two drivers the ledger schema ships migrations for.
type ClientConfig struct {
	Driver         string
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (c ClientConfig) GetDebug() bool {
	return c.Debug
}

func (c ClientConfig) GetDriver() string {
	return strings.TrimSpace(c.Driver)
}

func (c ClientConfig) GetServer() string {
	return strings.TrimSpace(c.DSN)
}

func (c ClientConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return defaultPingTimeout
	}
	return c.PingTimeout
}

func (c ClientConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelIdentifier) == "" {
		return "go-webhooks"
	}
	return strings.TrimSpace(c.OtelIdentifier)
}

// NewPostgresClient opens a postgres-backed persistence client with the
// ledger migrations registered. Callers still run client.Migrate.
func NewPostgresClient(ctx context.Context, cfg ClientConfig) (*persistence.Client, error) {
	cfg.Driver = DriverPostgres
	if cfg.GetServer() == "" {
		return nil, fmt.Errorf("sqlstore: postgres dsn is required")
	}
	sqlDB, err := sql.Open(DriverPostgres, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
	}
	client, err := persistence.New(cfg, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := registerMigrations(ctx, client, webhookmigrations.DialectPostgres); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// NewSQLiteClient opens a sqlite-backed persistence client, used by
// single-node deployments and the test suite.
func NewSQLiteClient(ctx context.Context, cfg ClientConfig) (*persistence.Client, error) {
	cfg.Driver = DriverSQLite
	if cfg.GetServer() == "" {
		return nil, fmt.Errorf("sqlstore: sqlite dsn is required")
	}
	sqlDB, err := sql.Open(DriverSQLite, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
	}
	// Shared-cache in-memory databases misbehave beyond one connection.
	if strings.Contains(cfg.GetServer(), "mode=memory") {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := registerMigrations(ctx, client, webhookmigrations.DialectSQLite); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func registerMigrations(ctx context.Context, client *persistence.Client, dialect string) error {
	_, err := webhookmigrations.Register(ctx, func(_ context.Context, migrationDialect string, _ string, fsys fs.FS) error {
		if migrationDialect != dialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, webhookmigrations.WithValidationTargets(dialect))
	return err
}
