package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/clean"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/config"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/metrics"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/pipeline"
	"github.com/malbeclabs/sensorlake/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Optional.
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	showVersionFlag := flag.Bool("version", false, "print version and exit")
	tableFlag := flag.String("table", pipeline.DefaultTable, "table receiving the cleaned dataset (or set TABLE env var)")
	enrichedTableFlag := flag.String("enriched-table", pipeline.DefaultEnrichedTable, "table receiving the enriched dataset when --registry-path is set (or set ENRICHED_TABLE env var)")
	precisionFlag := flag.Int("precision", clean.DefaultPrecision, "decimal places numeric fields are rounded to")
	zThresholdFlag := flag.Float64("z-threshold", clean.DefaultZThreshold, "absolute z-score above which a row is an outlier")
	metricsAddrFlag := flag.String("metrics-addr", "", "address to serve prometheus metrics on while the run lasts, e.g. :2112 (or set METRICS_ADDR env var)")

	var (
		sourceCfg   config.SourceConfig
		sinkCfg     config.SinkConfig
		registryCfg config.RegistryConfig
	)
	sourceCfg.BindFlags(flag.CommandLine)
	sinkCfg.BindFlags(flag.CommandLine)
	registryCfg.BindFlags(flag.CommandLine)

	flag.Parse()

	if *showVersionFlag {
		fmt.Printf("sensor-pipeline %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logger.New(*verboseFlag)

	if v := os.Getenv("TABLE"); v != "" {
		*tableFlag = v
	}
	if v := os.Getenv("ENRICHED_TABLE"); v != "" {
		*enrichedTableFlag = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		*metricsAddrFlag = v
	}
	sourceCfg.ApplyEnv()
	sinkCfg.ApplyEnv()
	registryCfg.ApplyEnv()

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Release:          version,
			Environment:      os.Getenv("SENTRY_ENVIRONMENT"),
			EnableTracing:    true,
			TracesSampleRate: 1.0,
		}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	cleanCfg := clean.SensorConfig(log)
	cleanCfg.Precision = *precisionFlag
	cleanCfg.ZThreshold = *zThresholdFlag

	src, err := config.OpenSource(ctx, log, sourceCfg)
	if err != nil {
		return err
	}
	snk, closeSink, err := config.OpenSink(ctx, log, sinkCfg, cleanCfg.Schema)
	if err != nil {
		return err
	}
	defer closeSink()

	runnerCfg := pipeline.Config{
		Logger: log,
		Source: src,
		Sink:   snk,
		Clean:  cleanCfg,
		Table:  *tableFlag,
	}
	if registryCfg.Path != "" {
		reg, closeRegistry, err := config.OpenRegistry(ctx, log, registryCfg)
		if err != nil {
			return err
		}
		defer closeRegistry()
		runnerCfg.Registry = reg
		runnerCfg.EnrichedTable = *enrichedTableFlag
	}

	runner, err := pipeline.New(runnerCfg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	runDone := make(chan struct{})

	if *metricsAddrFlag != "" {
		listener, err := net.Listen("tcp", *metricsAddrFlag)
		if err != nil {
			return fmt.Errorf("failed to start prometheus metrics server listener: %w", err)
		}
		serveCtx, cancelServe := context.WithCancel(gctx)
		defer cancelServe()
		g.Go(func() error {
			return metrics.Serve(serveCtx, log, listener)
		})
		g.Go(func() error {
			<-runDone
			cancelServe()
			return nil
		})
	}

	g.Go(func() error {
		defer close(runDone)
		_, err := runner.Run(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		sentry.CaptureException(err)
		return err
	}
	return nil
}
