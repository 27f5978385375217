package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/schema"
)

type PostgresConfig struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Schema schema.Schema
}

func (cfg *PostgresConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pool == nil {
		return errors.New("postgres pool is required")
	}
	return nil
}

// Postgres replaces tables in one transaction and loads rows with COPY.
type Postgres struct {
	log *slog.Logger
	cfg PostgresConfig
}

func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Postgres{log: cfg.Logger, cfg: cfg}, nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Write(ctx context.Context, table string, ds record.Dataset) error {
	if err := ValidateTable(table); err != nil {
		return &WriteError{Sink: p.Name(), Table: table, Err: err}
	}
	if err := p.write(ctx, table, ds); err != nil {
		return &WriteError{Sink: p.Name(), Table: table, Err: err}
	}
	p.log.Info("sink/postgres: table replaced", "table", table, "rows", ds.Len())
	return nil
}

func (p *Postgres) write(ctx context.Context, table string, ds record.Dataset) error {
	cols := Plan(ds, p.cfg.Schema)
	if len(cols) == 0 {
		return ErrNoColumns
	}
	ident := pgx.Identifier{table}

	return pgx.BeginFunc(ctx, p.cfg.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident.Sanitize()); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
		if _, err := tx.Exec(ctx, postgresCreateTable(ident, cols)); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		n, err := tx.CopyFrom(ctx, ident, names, pgx.CopyFromRows(Rows(ds, cols)))
		if err != nil {
			return fmt.Errorf("failed to copy rows: %w", err)
		}
		if int(n) != ds.Len() {
			return fmt.Errorf("copied %d rows, expected %d", n, ds.Len())
		}
		return nil
	})
}

func postgresCreateTable(ident pgx.Identifier, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + postgresType(c.Kind)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", ident.Sanitize(), strings.Join(defs, ", "))
}

func postgresType(k schema.Kind) string {
	switch k {
	case schema.KindNumber:
		return "DOUBLE PRECISION"
	case schema.KindTimestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// Drop removes the table if it exists.
func (p *Postgres) Drop(ctx context.Context, table string) error {
	if err := ValidateTable(table); err != nil {
		return err
	}
	if _, err := p.cfg.Pool.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{table}.Sanitize()); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}
