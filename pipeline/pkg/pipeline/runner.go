package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/clean"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/enrich"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/merge"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/metrics"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
)

// Summary describes one run.
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Sources []clean.Stats
	// Merged is the row count after cross-source deduplication.
	Merged             int
	DroppedCrossSource int
	Written            map[string]int
	Enrichment         *enrich.Stats
}

func (s Summary) Duration() time.Duration { return s.FinishedAt.Sub(s.StartedAt) }

// ValidationErrors totals validation failures across sources.
func (s Summary) ValidationErrors() int {
	n := 0
	for _, st := range s.Sources {
		n += st.ValidationErrors
	}
	return n
}

type Runner struct {
	log      *slog.Logger
	cfg      Config
	cleaner  *clean.Cleaner
	enricher *enrich.Enricher
}

func New(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cleaner, err := clean.New(cfg.Clean)
	if err != nil {
		return nil, fmt.Errorf("failed to create cleaner: %w", err)
	}
	r := &Runner{log: cfg.Logger, cfg: cfg, cleaner: cleaner}
	if cfg.Registry != nil {
		r.enricher, err = enrich.New(enrich.Config{Logger: cfg.Logger, Registry: cfg.Registry})
		if err != nil {
			return nil, fmt.Errorf("failed to create enricher: %w", err)
		}
	}
	return r, nil
}

// Run reads and cleans every source in name order, merges the results and writes them to the
// sink. Any source failure aborts the run before anything is written.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	summary := Summary{
		RunID:     uuid.NewString(),
		StartedAt: r.cfg.Clock.Now(),
		Written:   make(map[string]int),
	}
	log := r.log.With("run_id", summary.RunID)

	span := sentry.StartSpan(ctx, "pipeline.run", sentry.WithDescription("clean and merge telemetry"))
	span.SetTag("run_id", summary.RunID)
	defer span.Finish()

	err := r.run(span.Context(), log, &summary)
	summary.FinishedAt = r.cfg.Clock.Now()

	metrics.RunDuration.Observe(summary.Duration().Seconds())
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		metrics.RunsTotal.WithLabelValues("error").Inc()
		log.Error("pipeline: run failed", "error", err, "duration", summary.Duration())
		return summary, err
	}
	span.Status = sentry.SpanStatusOK
	metrics.RunsTotal.WithLabelValues("success").Inc()

	log.Info("pipeline: run completed",
		"sources", len(summary.Sources),
		"merged", summary.Merged,
		"dropped_cross_source", summary.DroppedCrossSource,
		"validation_errors", summary.ValidationErrors(),
		"duration", summary.Duration(),
	)
	return summary, nil
}

func (r *Runner) run(ctx context.Context, log *slog.Logger, summary *Summary) error {
	names, err := r.cfg.Source.List(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		log.Warn("pipeline: no sources found, nothing to write")
		return nil
	}
	log.Info("pipeline: processing sources", "count", len(names))

	cleaned := make([]record.Dataset, 0, len(names))
	total := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		child := sentry.StartSpan(ctx, "pipeline.source", sentry.WithDescription(name))
		raw, err := r.cfg.Source.Read(child.Context(), name)
		if err != nil {
			child.Status = sentry.SpanStatusInternalError
			child.Finish()
			return err
		}
		ds, stats := r.cleaner.Clean(raw)
		child.Finish()
		cleaned = append(cleaned, ds)
		summary.Sources = append(summary.Sources, stats)
		total += ds.Len()
	}

	merged := merge.Merge(r.cfg.Table, cleaned...)
	summary.Merged = merged.Len()
	summary.DroppedCrossSource = total - merged.Len()
	if summary.DroppedCrossSource > 0 {
		metrics.RowsDroppedTotal.WithLabelValues(r.cfg.Table, "cross_source_duplicate").Add(float64(summary.DroppedCrossSource))
	}

	if err := r.write(ctx, r.cfg.Table, merged, summary); err != nil {
		return err
	}

	if r.enricher == nil {
		return nil
	}
	enriched, stats, err := r.enricher.Enrich(ctx, merged)
	if err != nil {
		return err
	}
	summary.Enrichment = &stats
	return r.write(ctx, r.cfg.EnrichedTable, enriched, summary)
}

func (r *Runner) write(ctx context.Context, table string, ds record.Dataset, summary *Summary) error {
	if err := r.cfg.Sink.Write(ctx, table, ds); err != nil {
		return err
	}
	summary.Written[table] = ds.Len()
	metrics.RowsWrittenTotal.WithLabelValues(r.cfg.Sink.Name(), table).Add(float64(ds.Len()))
	return nil
}
