package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/goliatone/go-directus/core"
	"github.com/goliatone/go-directus/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// DatabaseConfig is the connection block of the durable credential store.
// Driver is a database/sql driver name, sqlite3 or postgres.
type DatabaseConfig struct {
	Driver      string        `koanf:"driver" env:"DRIVER"`
	DSN         string        `koanf:"dsn" env:"DSN"`
	Debug       bool          `koanf:"debug" env:"DEBUG"`
	PingTimeout time.Duration `koanf:"ping_timeout" env:"PING_TIMEOUT"`
}

func (c DatabaseConfig) GetDebug() bool {
	return c.Debug
}

func (c DatabaseConfig) GetDriver() string {
	return strings.TrimSpace(c.Driver)
}

func (c DatabaseConfig) GetServer() string {
	return strings.TrimSpace(c.DSN)
}

func (c DatabaseConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c DatabaseConfig) GetOtelIdentifier() string {
	return "go-directus"
}

// Open connects through go-persistence-bun and applies the credential schema
// for the configured dialect.
func Open(ctx context.Context, cfg DatabaseConfig) (*persistence.Client, error) {
	dialectName, err := migrations.DialectForDriver(cfg.GetDriver())
	if err != nil {
		return nil, err
	}
	if cfg.GetServer() == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}

	driver := "postgres"
	var dialect schema.Dialect = pgdialect.New()
	if dialectName == migrations.DialectSQLite {
		driver = "sqlite3"
		dialect = sqlitedialect.New()
	}
	sqlDB, err := sql.Open(driver, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if dialectName == migrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	_, err = migrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithDialects(dialectName))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}

// NewCredentialStoreFromClient builds a CredentialStore over the client's
// bun database.
func NewCredentialStoreFromClient(client *persistence.Client, secrets core.SecretProvider, opts ...Option) (*CredentialStore, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	return NewCredentialStore(client.DB(), secrets, opts...)
}
