package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/schema"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/sqlite"
)

type SQLiteConfig struct {
	Logger *slog.Logger
	DB     *sql.DB
	Schema schema.Schema
}

func (cfg *SQLiteConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DB == nil {
		return errors.New("sqlite db is required")
	}
	return nil
}

// SQLite writes each table inside a single transaction, so readers see either the previous
// contents or the new ones.
type SQLite struct {
	log *slog.Logger
	cfg SQLiteConfig
}

func NewSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SQLite{log: cfg.Logger, cfg: cfg}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Write(ctx context.Context, table string, ds record.Dataset) error {
	if err := ValidateTable(table); err != nil {
		return &WriteError{Sink: s.Name(), Table: table, Err: err}
	}
	if err := s.write(ctx, table, ds); err != nil {
		return &WriteError{Sink: s.Name(), Table: table, Err: err}
	}
	s.log.Info("sink/sqlite: table replaced", "table", table, "rows", ds.Len())
	return nil
}

func (s *SQLite) write(ctx context.Context, table string, ds record.Dataset) error {
	cols := Plan(ds, s.cfg.Schema)
	if len(cols) == 0 {
		return ErrNoColumns
	}
	quoted := sqlite.QuoteIdent(table)

	tx, err := s.cfg.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoted); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqliteCreateTable(quoted, cols)); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	if ds.Len() > 0 {
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = sqlite.QuoteIdent(c.Name)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoted, strings.Join(names, ", "), placeholders))
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range Rows(ds, cols) {
			for i, c := range cols {
				// Timestamps are stored as RFC 3339 text.
				if ts, ok := row[i].(time.Time); ok && c.Kind == schema.KindTimestamp {
					row[i] = ts.UTC().Format(record.TimestampLayout)
				}
			}
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return fmt.Errorf("failed to insert row: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func sqliteCreateTable(quoted string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = sqlite.QuoteIdent(c.Name) + " " + sqliteType(c.Kind)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoted, strings.Join(defs, ", "))
}

func sqliteType(k schema.Kind) string {
	switch k {
	case schema.KindNumber:
		return "REAL"
	case schema.KindTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// Drop removes the table if it exists.
func (s *SQLite) Drop(ctx context.Context, table string) error {
	if err := ValidateTable(table); err != nil {
		return err
	}
	if _, err := s.cfg.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlite.QuoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}
