package config

import (
	"context"
	"fmt"
	"log/slog"

	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/clickhouse"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/postgres"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/schema"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/sink"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/sqlite"
)

const (
	SinkSQLite     = "sqlite"
	SinkPostgres   = "postgres"
	SinkClickHouse = "clickhouse"
	SinkCSV        = "csv"

	DefaultSQLitePath = "sensor_data.db"
)

// SinkConfig selects and configures the output store.
type SinkConfig struct {
	Kind       string
	SQLitePath string
	// PostgresURL takes precedence over the individual Postgres fields.
	PostgresURL string
	Postgres    postgres.PoolConfig
	ClickHouse  clickhouse.ClientConfig
	CSVDir      string
}

func (c *SinkConfig) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Kind, "sink", SinkSQLite, "output store: sqlite, postgres, clickhouse or csv (or set SINK env var)")
	fs.StringVar(&c.SQLitePath, "sqlite-path", DefaultSQLitePath, "SQLite database file (or set SQLITE_PATH env var)")
	fs.StringVar(&c.PostgresURL, "postgres-url", "", "PostgreSQL connection URL (or set POSTGRES_URL env var)")
	fs.StringVar(&c.Postgres.Host, "postgres-host", "localhost", "PostgreSQL host (or set POSTGRES_HOST env var)")
	fs.StringVar(&c.Postgres.Port, "postgres-port", "5432", "PostgreSQL port (or set POSTGRES_PORT env var)")
	fs.StringVar(&c.Postgres.Database, "postgres-database", "", "PostgreSQL database (or set POSTGRES_DB env var)")
	fs.StringVar(&c.Postgres.Username, "postgres-username", "", "PostgreSQL username (or set POSTGRES_USER env var)")
	fs.StringVar(&c.Postgres.Password, "postgres-password", "", "PostgreSQL password (or set POSTGRES_PASSWORD env var)")
	fs.StringVar(&c.Postgres.SSLMode, "postgres-sslmode", "disable", "PostgreSQL sslmode (or set POSTGRES_SSLMODE env var)")
	fs.StringVar(&c.ClickHouse.Addr, "clickhouse-addr", "", "ClickHouse address (host:port) (or set CLICKHOUSE_ADDR_TCP env var)")
	fs.StringVar(&c.ClickHouse.Database, "clickhouse-database", clickhouse.DefaultDatabase, "ClickHouse database name (or set CLICKHOUSE_DATABASE env var)")
	fs.StringVar(&c.ClickHouse.Username, "clickhouse-username", "default", "ClickHouse username (or set CLICKHOUSE_USERNAME env var)")
	fs.StringVar(&c.ClickHouse.Password, "clickhouse-password", "", "ClickHouse password (or set CLICKHOUSE_PASSWORD env var)")
	fs.BoolVar(&c.ClickHouse.Secure, "clickhouse-secure", false, "Enable TLS for ClickHouse Cloud (or set CLICKHOUSE_SECURE=true env var)")
	fs.StringVar(&c.CSVDir, "csv-dir", "output", "directory for the csv sink (or set CSV_DIR env var)")
}

// ApplyEnv overrides flag values with environment variables that are set.
func (c *SinkConfig) ApplyEnv() {
	envString(&c.Kind, "SINK")
	envString(&c.SQLitePath, "SQLITE_PATH")
	envString(&c.PostgresURL, "POSTGRES_URL")
	envString(&c.Postgres.Host, "POSTGRES_HOST")
	envString(&c.Postgres.Port, "POSTGRES_PORT")
	envString(&c.Postgres.Database, "POSTGRES_DB")
	envString(&c.Postgres.Username, "POSTGRES_USER")
	envString(&c.Postgres.Password, "POSTGRES_PASSWORD")
	envString(&c.Postgres.SSLMode, "POSTGRES_SSLMODE")
	envString(&c.ClickHouse.Addr, "CLICKHOUSE_ADDR_TCP")
	envString(&c.ClickHouse.Database, "CLICKHOUSE_DATABASE")
	envString(&c.ClickHouse.Username, "CLICKHOUSE_USERNAME")
	envString(&c.ClickHouse.Password, "CLICKHOUSE_PASSWORD")
	envBool(&c.ClickHouse.Secure, "CLICKHOUSE_SECURE")
	envString(&c.CSVDir, "CSV_DIR")
}

// Sink is an opened output store. Close releases its connections.
type Sink interface {
	sink.Sink
	sink.Dropper
}

// OpenSink connects to the configured store. The returned close function is never nil.
func OpenSink(ctx context.Context, log *slog.Logger, cfg SinkConfig, s schema.Schema) (Sink, func(), error) {
	noop := func() {}
	switch cfg.Kind {
	case SinkSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		out, err := sink.NewSQLite(sink.SQLiteConfig{Logger: log, DB: db, Schema: s})
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return out, func() { db.Close() }, nil

	case SinkPostgres:
		pool, err := postgres.NewPool(ctx, log, cfg.PostgresURL, cfg.Postgres)
		if err != nil {
			return nil, noop, err
		}
		out, err := sink.NewPostgres(sink.PostgresConfig{Logger: log, Pool: pool, Schema: s})
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		return out, pool.Close, nil

	case SinkClickHouse:
		client, err := clickhouse.NewClient(ctx, log, cfg.ClickHouse)
		if err != nil {
			return nil, noop, err
		}
		out, err := sink.NewClickHouse(sink.ClickHouseConfig{Logger: log, Client: client, Schema: s})
		if err != nil {
			client.Close()
			return nil, noop, err
		}
		return out, func() { client.Close() }, nil

	case SinkCSV:
		out, err := sink.NewCSV(sink.CSVConfig{Logger: log, Dir: cfg.CSVDir})
		if err != nil {
			return nil, noop, err
		}
		return out, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown sink %q", cfg.Kind)
}
