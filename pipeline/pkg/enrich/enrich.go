package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/metrics"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/registry"
)

const (
	TypeColumn   = "type"
	StatusColumn = "status"
)

type Config struct {
	Logger   *slog.Logger
	Registry registry.Registry
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Registry == nil {
		return errors.New("registry is required")
	}
	return nil
}

// Stats counts how many rows found a registry match.
type Stats struct {
	Matched        int
	Unmatched      int
	UnknownDevices []string
}

type Enricher struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Enricher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Enricher{log: cfg.Logger, cfg: cfg}, nil
}

// Enrich left-joins the dataset with the registry on device id, adding type and status
// columns. Rows whose device is not registered keep absent values in both columns.
func (e *Enricher) Enrich(ctx context.Context, ds record.Dataset) (record.Dataset, Stats, error) {
	type lookup struct {
		device registry.Device
		found  bool
	}
	cache := make(map[string]lookup)

	var stats Stats
	out := make([]record.Record, 0, ds.Len())
	for _, r := range ds.Records() {
		typ, status := record.Absent(), record.Absent()

		id, ok := r.Get(record.DeviceIDColumn).Str()
		if ok {
			l, cached := cache[id]
			if !cached {
				d, found, err := e.cfg.Registry.Lookup(ctx, id)
				if err != nil {
					return record.Dataset{}, Stats{}, fmt.Errorf("failed to enrich device %s: %w", id, err)
				}
				l = lookup{device: d, found: found}
				cache[id] = l
				if !found {
					stats.UnknownDevices = append(stats.UnknownDevices, id)
				}
			}
			if l.found {
				typ, status = record.String(l.device.Type), record.String(l.device.Status)
			}
		}

		if typ.IsAbsent() {
			stats.Unmatched++
		} else {
			stats.Matched++
		}
		out = append(out, r.With(TypeColumn, typ).With(StatusColumn, status))
	}

	metrics.RowsEnrichedTotal.WithLabelValues("matched").Add(float64(stats.Matched))
	metrics.RowsEnrichedTotal.WithLabelValues("unmatched").Add(float64(stats.Unmatched))
	if len(stats.UnknownDevices) > 0 {
		e.log.Warn("enrich: devices missing from registry", "count", len(stats.UnknownDevices), "devices", stats.UnknownDevices)
	}
	e.log.Info("enrich: dataset enriched", "dataset", ds.Name, "matched", stats.Matched, "unmatched", stats.Unmatched)

	return ds.WithColumns(TypeColumn, StatusColumn).WithRecords(out), stats, nil
}
