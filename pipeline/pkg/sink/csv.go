package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
)

type CSVConfig struct {
	Logger *slog.Logger
	Dir    string
}

func (cfg *CSVConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Dir == "" {
		return errors.New("output directory is required")
	}
	return nil
}

// CSV writes each table to <dir>/<table>.csv. The file is written next to the target and
// renamed over it once complete.
type CSV struct {
	log *slog.Logger
	cfg CSVConfig
}

func NewCSV(cfg CSVConfig) (*CSV, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CSV{log: cfg.Logger, cfg: cfg}, nil
}

func (c *CSV) Name() string { return "csv" }

// Path returns the file a table is written to.
func (c *CSV) Path(table string) string {
	return filepath.Join(c.cfg.Dir, table+".csv")
}

func (c *CSV) Write(ctx context.Context, table string, ds record.Dataset) error {
	if err := ValidateTable(table); err != nil {
		return &WriteError{Sink: c.Name(), Table: table, Err: err}
	}
	if err := c.write(table, ds); err != nil {
		return &WriteError{Sink: c.Name(), Table: table, Err: err}
	}
	c.log.Info("sink/csv: table replaced", "table", table, "path", c.Path(table), "rows", ds.Len())
	return nil
}

func (c *CSV) write(table string, ds record.Dataset) error {
	cols := ds.Columns()
	if len(cols) == 0 {
		return ErrNoColumns
	}
	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(c.cfg.Dir, "."+table+"-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(cols); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	line := make([]string, len(cols))
	for _, r := range ds.Records() {
		for i, col := range cols {
			line[i] = r.Get(col).String()
		}
		if err := w.Write(line); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.Path(table)); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// Drop removes the table's file if it exists.
func (c *CSV) Drop(ctx context.Context, table string) error {
	if err := ValidateTable(table); err != nil {
		return err
	}
	if err := os.Remove(c.Path(table)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", c.Path(table), err)
	}
	return nil
}
