package clickhousetesting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/clickhouse"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcch "github.com/testcontainers/testcontainers-go/modules/clickhouse"
)

type DBConfig struct {
	Database       string
	Username       string
	Password       string
	Port           string
	ContainerImage string
}

func (cfg *DBConfig) Validate() error {
	if cfg.Database == "" {
		cfg.Database = "test"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	if cfg.Password == "" {
		cfg.Password = "password"
	}
	if cfg.Port == "" {
		cfg.Port = "9000"
	}
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = "clickhouse/clickhouse-server:latest"
	}
	return nil
}

type DB struct {
	log       *slog.Logger
	cfg       *DBConfig
	addr      string
	container *tcch.ClickHouseContainer
}

// Addr returns the native protocol address (host:port).
func (db *DB) Addr() string {
	return db.addr
}

// ClientConfig returns a client configuration for the given database.
func (db *DB) ClientConfig(database string) clickhouse.ClientConfig {
	return clickhouse.ClientConfig{
		Addr:     db.addr,
		Database: database,
		Username: db.cfg.Username,
		Password: db.cfg.Password,
	}
}

func (db *DB) Close() {
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.container.Terminate(terminateCtx); err != nil {
		db.log.Error("failed to terminate ClickHouse container", "error", err)
	}
}

func NewDB(ctx context.Context, log *slog.Logger, cfg *DBConfig) (*DB, error) {
	if cfg == nil {
		cfg = &DBConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate DB config: %w", err)
	}

	container, err := tcch.Run(ctx,
		cfg.ContainerImage,
		tcch.WithDatabase(cfg.Database),
		tcch.WithUsername(cfg.Username),
		tcch.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start ClickHouse container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get ClickHouse container host: %w", err)
	}
	mappedPort, err := container.MappedPort(ctx, nat.Port(cfg.Port+"/tcp"))
	if err != nil {
		return nil, fmt.Errorf("failed to get ClickHouse container mapped port: %w", err)
	}

	return &DB{
		log:       log,
		cfg:       cfg,
		addr:      fmt.Sprintf("%s:%s", host, mappedPort.Port()),
		container: container,
	}, nil
}

// NewTestClient creates a randomly named database and a client bound to it. The database is
// dropped when the test finishes.
func NewTestClient(t *testing.T, db *DB) (clickhouse.Client, string) {
	t.Helper()

	adminClient, err := clickhouse.NewClient(t.Context(), db.log, db.ClientConfig(db.cfg.Database))
	require.NoError(t, err)
	adminConn, err := adminClient.Conn(t.Context())
	require.NoError(t, err)

	database := "test_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	require.NoError(t, clickhouse.CreateDatabase(t.Context(), db.log, adminConn, database))

	testClient, err := clickhouse.NewClient(t.Context(), db.log, db.ClientConfig(database))
	require.NoError(t, err)

	t.Cleanup(func() {
		dropCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := adminConn.Exec(dropCtx, "DROP DATABASE IF EXISTS "+clickhouse.QuoteIdent(database)); err != nil {
			db.log.Error("failed to drop test database", "database", database, "error", err)
		}
		testClient.Close()
		adminClient.Close()
	})

	return testClient, database
}

// Shared starts one container per test binary on first use. Tests are skipped when no
// container provider is available.
type Shared struct {
	Logger *slog.Logger

	once sync.Once
	db   *DB
	err  error
}

func (s *Shared) DB(t *testing.T) *DB {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	s.once.Do(func() {
		s.db, s.err = NewDB(context.Background(), s.Logger, nil)
	})
	require.NoError(t, s.err)
	return s.db
}

// Close terminates the container if one was started.
func (s *Shared) Close() {
	if s.db != nil {
		s.db.Close()
	}
}
