package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/clickhouse"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/schema"
)

type ClickHouseConfig struct {
	Logger *slog.Logger
	Client clickhouse.Client
	Schema schema.Schema
}

func (cfg *ClickHouseConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Client == nil {
		return errors.New("clickhouse client is required")
	}
	return nil
}

// ClickHouse loads rows into a staging table and swaps it into place with a rename, so the
// target table is never observed half written.
type ClickHouse struct {
	log *slog.Logger
	cfg ClickHouseConfig
}

func NewClickHouse(cfg ClickHouseConfig) (*ClickHouse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ClickHouse{log: cfg.Logger, cfg: cfg}, nil
}

func (c *ClickHouse) Name() string { return "clickhouse" }

func (c *ClickHouse) Write(ctx context.Context, table string, ds record.Dataset) error {
	if err := ValidateTable(table); err != nil {
		return &WriteError{Sink: c.Name(), Table: table, Err: err}
	}
	if err := c.write(ctx, table, ds); err != nil {
		return &WriteError{Sink: c.Name(), Table: table, Err: err}
	}
	c.log.Info("sink/clickhouse: table replaced", "table", table, "rows", ds.Len())
	return nil
}

func (c *ClickHouse) write(ctx context.Context, table string, ds record.Dataset) error {
	cols := Plan(ds, c.cfg.Schema)
	if len(cols) == 0 {
		return ErrNoColumns
	}

	conn, err := c.cfg.Client.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	target := clickhouse.QuoteIdent(table)
	staging := clickhouse.QuoteIdent(table + "__staging")

	if err := conn.Exec(ctx, "DROP TABLE IF EXISTS "+staging); err != nil {
		return fmt.Errorf("failed to drop staging table: %w", err)
	}
	if err := conn.Exec(ctx, clickhouseCreateTable(staging, cols)); err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}

	if ds.Len() > 0 {
		names := make([]string, len(cols))
		for i, col := range cols {
			names[i] = clickhouse.QuoteIdent(col.Name)
		}
		insertCtx := clickhouse.ContextWithSyncInsert(ctx)
		batch, err := conn.PrepareBatch(insertCtx, fmt.Sprintf("INSERT INTO %s (%s)", staging, strings.Join(names, ", ")))
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		for _, row := range Rows(ds, cols) {
			if err := batch.Append(row...); err != nil {
				batch.Abort()
				return fmt.Errorf("failed to append row: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}

	if err := conn.Exec(ctx, "DROP TABLE IF EXISTS "+target); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	if err := conn.Exec(ctx, fmt.Sprintf("RENAME TABLE %s TO %s", staging, target)); err != nil {
		return fmt.Errorf("failed to rename staging table: %w", err)
	}
	return nil
}

func clickhouseCreateTable(quoted string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = clickhouse.QuoteIdent(c.Name) + " " + clickhouseType(c.Kind)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s) ENGINE = MergeTree ORDER BY tuple()", quoted, strings.Join(defs, ", "))
}

func clickhouseType(k schema.Kind) string {
	switch k {
	case schema.KindNumber:
		return "Nullable(Float64)"
	case schema.KindTimestamp:
		return "Nullable(DateTime64(9, 'UTC'))"
	default:
		return "Nullable(String)"
	}
}

// Drop removes the table if it exists.
func (c *ClickHouse) Drop(ctx context.Context, table string) error {
	if err := ValidateTable(table); err != nil {
		return err
	}
	conn, err := c.cfg.Client.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()
	if err := conn.Exec(ctx, "DROP TABLE IF EXISTS "+clickhouse.QuoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}
