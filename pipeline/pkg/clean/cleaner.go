package clean

import (
	"log/slog"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/metrics"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/schema"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/validate"
)

// Stats summarises what cleaning did to one source.
type Stats struct {
	Source            string
	Read              int
	DroppedTimestamp  int
	InvalidRows       int
	ValidationErrors  int
	Fills             map[string]Fill
	DroppedDuplicates int
	DroppedOutliers   map[string]int
	Kept              int
}

type Cleaner struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Cleaner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Cleaner{log: cfg.Logger, cfg: cfg}, nil
}

// Clean runs the per-source stages in order: timestamp normalisation, validation reporting,
// imputation, rounding, deduplication and outlier rejection. The input dataset is not modified.
func (c *Cleaner) Clean(ds record.Dataset) (record.Dataset, Stats) {
	stats := Stats{Source: ds.Name, Read: ds.Len()}
	metrics.RowsReadTotal.WithLabelValues(ds.Name).Add(float64(ds.Len()))

	ds, stats.DroppedTimestamp = NormalizeTimestamps(ds, c.cfg.Schema)
	c.recordDropped(ds.Name, "timestamp", stats.DroppedTimestamp)

	stats.InvalidRows, stats.ValidationErrors = c.report(ds)

	ds, stats.Fills = Impute(ds, c.cfg.Imputations)
	for col, fill := range stats.Fills {
		metrics.ValuesImputedTotal.WithLabelValues(ds.Name, col).Add(float64(fill.Count))
		c.log.Debug("clean: imputed missing values", "source", ds.Name, "column", col, "value", fill.Value.String(), "count", fill.Count)
	}

	ds = Round(ds, c.cfg.Schema.FieldsOfKind(schema.KindNumber), c.cfg.Precision)

	before := ds.Len()
	ds = record.Dedup(ds)
	stats.DroppedDuplicates = before - ds.Len()
	c.recordDropped(ds.Name, "duplicate", stats.DroppedDuplicates)

	ds, stats.DroppedOutliers = RejectOutliers(ds, c.cfg.OutlierColumns, c.cfg.ZThreshold)
	for col, n := range stats.DroppedOutliers {
		c.recordDropped(ds.Name, "outlier_"+col, n)
	}

	stats.Kept = ds.Len()
	c.log.Info("clean: source cleaned",
		"source", ds.Name,
		"read", stats.Read,
		"dropped_timestamp", stats.DroppedTimestamp,
		"invalid_rows", stats.InvalidRows,
		"dropped_duplicates", stats.DroppedDuplicates,
		"kept", stats.Kept,
	)
	return ds, stats
}

// report logs every validation failure and returns the number of failing rows and errors.
func (c *Cleaner) report(ds record.Dataset) (int, int) {
	rows, errs := 0, 0
	for i, report := range validate.Dataset(ds, c.cfg.Schema) {
		if report.Valid() {
			continue
		}
		rows++
		r := ds.At(i)
		for _, e := range report {
			errs++
			metrics.ValidationErrorsTotal.WithLabelValues(e.Field, string(e.Rule)).Inc()
			c.log.Warn("clean: validation failed",
				"source", ds.Name,
				"row", r.Row,
				"field", e.Field,
				"rule", string(e.Rule),
				"error", e.Error(),
			)
		}
	}
	return rows, errs
}

func (c *Cleaner) recordDropped(source, stage string, n int) {
	if n == 0 {
		return
	}
	metrics.RowsDroppedTotal.WithLabelValues(source, stage).Add(float64(n))
	c.log.Debug("clean: dropped rows", "source", source, "stage", stage, "count", n)
}
