package pipeline

import (
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/clean"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/registry"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/sink"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/source"
)

const (
	DefaultTable         = "cleaned_data"
	DefaultEnrichedTable = "enriched_data"
)

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Source source.Source
	Sink   sink.Sink

	// Clean defaults to clean.SensorConfig when it carries no schema.
	Clean clean.Config

	// Table receives the merged, cleaned dataset.
	Table string

	// Registry is optional. When set, the merged dataset is also enriched with device metadata
	// and written to EnrichedTable.
	Registry      registry.Registry
	EnrichedTable string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Source == nil {
		return errors.New("source is required")
	}
	if cfg.Sink == nil {
		return errors.New("sink is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Clean.Schema.Len() == 0 {
		cfg.Clean = clean.SensorConfig(cfg.Logger)
	}
	if cfg.Clean.Logger == nil {
		cfg.Clean.Logger = cfg.Logger
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if err := sink.ValidateTable(cfg.Table); err != nil {
		return err
	}
	if cfg.Registry != nil {
		if cfg.EnrichedTable == "" {
			cfg.EnrichedTable = DefaultEnrichedTable
		}
		if err := sink.ValidateTable(cfg.EnrichedTable); err != nil {
			return err
		}
		if cfg.EnrichedTable == cfg.Table {
			return errors.New("enriched table must differ from the cleaned table")
		}
	}
	return nil
}
