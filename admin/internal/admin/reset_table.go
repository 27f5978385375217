package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/sink"
)

type ResetTableConfig struct {
	Tables      []string
	DryRun      bool
	SkipConfirm bool

	// In and Out carry the confirmation prompt.
	In  io.Reader
	Out io.Writer
}

// ResetTable drops the given tables from the sink after an interactive confirmation.
func ResetTable(ctx context.Context, log *slog.Logger, dropper sink.Dropper, sinkName string, cfg ResetTableConfig) error {
	if len(cfg.Tables) == 0 {
		return fmt.Errorf("no tables given")
	}
	for _, table := range cfg.Tables {
		if err := sink.ValidateTable(table); err != nil {
			return err
		}
	}

	fmt.Fprintf(cfg.Out, "⚠️  WARNING: This will DROP %d table(s) from the %s sink:\n\n", len(cfg.Tables), sinkName)
	for _, table := range cfg.Tables {
		fmt.Fprintf(cfg.Out, "  - %s\n", table)
	}

	if cfg.DryRun {
		fmt.Fprintln(cfg.Out, "\n[DRY RUN] Would drop the above tables")
		return nil
	}

	if !cfg.SkipConfirm {
		fmt.Fprintf(cfg.Out, "\n⚠️  This is a DESTRUCTIVE operation that cannot be undone!\n")
		fmt.Fprintf(cfg.Out, "Type 'yes' to confirm: ")

		response, err := bufio.NewReader(cfg.In).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Fprintf(cfg.Out, "\nConfirmation failed. Operation cancelled.\n")
			return nil
		}
		fmt.Fprintln(cfg.Out)
	}

	fmt.Fprintln(cfg.Out, "Dropping tables...")
	for _, table := range cfg.Tables {
		if err := dropper.Drop(ctx, table); err != nil {
			return err
		}
		log.Info("admin: dropped table", "sink", sinkName, "table", table)
		fmt.Fprintf(cfg.Out, "  ✓ Dropped %s\n", table)
	}

	fmt.Fprintf(cfg.Out, "\nSuccessfully dropped %d table(s)\n", len(cfg.Tables))
	return nil
}
