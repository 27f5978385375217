package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/sensorlake/admin/internal/admin"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/config"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/pipeline"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/schema"
	"github.com/malbeclabs/sensorlake/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	var (
		sinkCfg     config.SinkConfig
		registryCfg config.RegistryConfig
	)
	sinkCfg.BindFlags(flag.CommandLine)
	registryCfg.BindFlags(flag.CommandLine)

	// Commands
	registryMigrateFlag := flag.Bool("registry-migrate", false, "Run device registry migrations using goose")
	registryMigrateStatusFlag := flag.Bool("registry-migrate-status", false, "Show device registry migration status")
	registryPopulateFlag := flag.StringSlice("registry-populate", nil, "Register the devices of each file under a type, as type=path pairs (e.g. \"Temperature Sensor=data/temp.csv\")")
	registryListFlag := flag.Bool("registry-list", false, "List registered devices")
	resetTableFlag := flag.StringSlice("reset-table", nil, fmt.Sprintf("Drop tables from the configured sink (e.g. %s,%s)", pipeline.DefaultTable, pipeline.DefaultEnrichedTable))
	dryRunFlag := flag.Bool("dry-run", false, "Dry run mode - show what would be done without actually executing")
	yesFlag := flag.Bool("yes", false, "Skip confirmation prompt (use with caution)")

	flag.Parse()

	log := logger.New(*verboseFlag)

	sinkCfg.ApplyEnv()
	registryCfg.ApplyEnv()

	ctx := context.Background()

	if *registryMigrateFlag || *registryMigrateStatusFlag || len(*registryPopulateFlag) > 0 || *registryListFlag {
		if registryCfg.Path == "" {
			return fmt.Errorf("--registry-path is required for registry commands")
		}
		// Opening the registry applies pending migrations.
		store, closeRegistry, err := config.OpenRegistry(ctx, log, registryCfg)
		if err != nil {
			return err
		}
		defer closeRegistry()

		switch {
		case *registryMigrateStatusFlag:
			return admin.PrintMigrationStatus(ctx, store, os.Stdout)
		case len(*registryPopulateFlag) > 0:
			specs, err := admin.ParsePopulateSpecs(*registryPopulateFlag)
			if err != nil {
				return err
			}
			n, err := admin.PopulateRegistry(ctx, log, store, specs)
			if err != nil {
				return err
			}
			fmt.Printf("Registered %d new device(s)\n", n)
			return nil
		case *registryListFlag:
			return admin.PrintDevices(ctx, store, os.Stdout)
		}
		return nil
	}

	if len(*resetTableFlag) > 0 {
		snk, closeSink, err := config.OpenSink(ctx, log, sinkCfg, schema.Sensor())
		if err != nil {
			return err
		}
		defer closeSink()
		return admin.ResetTable(ctx, log, snk, snk.Name(), admin.ResetTableConfig{
			Tables:      *resetTableFlag,
			DryRun:      *dryRunFlag,
			SkipConfirm: *yesFlag,
			In:          os.Stdin,
			Out:         os.Stdout,
		})
	}

	flag.Usage()
	return nil
}
