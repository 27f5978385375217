package admin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/registry"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/source"
)

// PopulateSpec pairs a device type with the telemetry file whose devices get that type.
type PopulateSpec struct {
	Type string
	Path string
}

// ParsePopulateSpecs parses "type=path" pairs, e.g. "Temperature Sensor=data/temp.csv".
func ParsePopulateSpecs(pairs []string) ([]PopulateSpec, error) {
	specs := make([]PopulateSpec, 0, len(pairs))
	for _, p := range pairs {
		typ, path, ok := strings.Cut(p, "=")
		typ, path = strings.TrimSpace(typ), strings.TrimSpace(path)
		if !ok || typ == "" || path == "" {
			return nil, fmt.Errorf("invalid populate spec %q, expected type=path", p)
		}
		specs = append(specs, PopulateSpec{Type: typ, Path: path})
	}
	return specs, nil
}

// PopulateRegistry registers every device found in the given files. Devices already in the
// registry keep their existing type and status.
func PopulateRegistry(ctx context.Context, log *slog.Logger, store *registry.Store, specs []PopulateSpec) (int, error) {
	total := 0
	for _, spec := range specs {
		devices, err := devicesFromFile(spec)
		if err != nil {
			return total, err
		}
		n, err := store.Populate(ctx, devices)
		if err != nil {
			return total, err
		}
		log.Info("admin: registered devices", "type", spec.Type, "path", spec.Path, "found", len(devices), "inserted", n)
		total += n
	}
	return total, nil
}

func devicesFromFile(spec PopulateSpec) ([]registry.Device, error) {
	f, err := os.Open(spec.Path)
	if err != nil {
		return nil, &source.ReadError{Source: spec.Path, Err: err}
	}
	defer f.Close()

	ds, err := source.ParseCSV(spec.Path, f)
	if err != nil {
		return nil, &source.ReadError{Source: spec.Path, Err: err}
	}
	return registry.DevicesFromDataset(ds, spec.Type), nil
}

// PrintMigrationStatus writes one line per registry migration.
func PrintMigrationStatus(ctx context.Context, store *registry.Store, out io.Writer) error {
	states, err := store.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%-10s %-22s %s\n", "VERSION", "APPLIED AT", "MIGRATION")
	for _, st := range states {
		applied := "pending"
		if st.Applied {
			applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "%-10d %-22s %s\n", st.Version, applied, st.Path)
	}
	return nil
}

// PrintDevices writes the registry contents.
func PrintDevices(ctx context.Context, store *registry.Store, out io.Writer) error {
	devices, err := store.Devices(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Fprintf(out, "%s\t%s\t%s\n", d.ID, d.Type, d.Status)
	}
	fmt.Fprintf(out, "%d device(s)\n", len(devices))
	return nil
}
