package admin

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/registry"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/source"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/sqlite"
	sensortesting "github.com/malbeclabs/sensorlake/utils/pkg/testing"
	"github.com/stretchr/testify/require"
)

type recordingDropper struct {
	dropped []string
	err     error
}

func (r *recordingDropper) Drop(_ context.Context, table string) error {
	if r.err != nil {
		return r.err
	}
	r.dropped = append(r.dropped, table)
	return nil
}

func TestSensorLake_Admin_ResetTable(t *testing.T) {
	t.Parallel()

	log := sensortesting.NewLogger()
	ctx := context.Background()

	t.Run("dry run drops nothing", func(t *testing.T) {
		t.Parallel()

		d := &recordingDropper{}
		var out bytes.Buffer
		err := ResetTable(ctx, log, d, "sqlite", ResetTableConfig{Tables: []string{"cleaned_data"}, DryRun: true, Out: &out})
		require.NoError(t, err)
		require.Empty(t, d.dropped)
		require.Contains(t, out.String(), "[DRY RUN]")
		require.Contains(t, out.String(), "  - cleaned_data")
	})

	t.Run("confirmation required", func(t *testing.T) {
		t.Parallel()

		d := &recordingDropper{}
		var out bytes.Buffer
		err := ResetTable(ctx, log, d, "sqlite", ResetTableConfig{Tables: []string{"cleaned_data"}, In: strings.NewReader("no\n"), Out: &out})
		require.NoError(t, err)
		require.Empty(t, d.dropped)
		require.Contains(t, out.String(), "Operation cancelled")

		err = ResetTable(ctx, log, d, "sqlite", ResetTableConfig{Tables: []string{"cleaned_data", "enriched_data"}, In: strings.NewReader("YES\n"), Out: &out})
		require.NoError(t, err)
		require.Equal(t, []string{"cleaned_data", "enriched_data"}, d.dropped)
	})

	t.Run("skip confirmation", func(t *testing.T) {
		t.Parallel()

		d := &recordingDropper{}
		var out bytes.Buffer
		err := ResetTable(ctx, log, d, "csv", ResetTableConfig{Tables: []string{"cleaned_data"}, SkipConfirm: true, Out: &out})
		require.NoError(t, err)
		require.Equal(t, []string{"cleaned_data"}, d.dropped)
		require.Contains(t, out.String(), "Successfully dropped 1 table(s)")
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		require.Error(t, ResetTable(ctx, log, &recordingDropper{}, "csv", ResetTableConfig{Out: &out}))
		require.Error(t, ResetTable(ctx, log, &recordingDropper{}, "csv", ResetTableConfig{Tables: []string{"bad;name"}, Out: &out}))

		d := &recordingDropper{err: errors.New("boom")}
		err := ResetTable(ctx, log, d, "csv", ResetTableConfig{Tables: []string{"cleaned_data"}, SkipConfirm: true, Out: &out})
		require.EqualError(t, err, "boom")
	})
}

func TestSensorLake_Admin_ParsePopulateSpecs(t *testing.T) {
	t.Parallel()

	specs, err := ParsePopulateSpecs([]string{"Temperature Sensor=data/temp.csv", " Humidity Sensor = data/hum.csv "})
	require.NoError(t, err)
	require.Equal(t, []PopulateSpec{
		{Type: "Temperature Sensor", Path: "data/temp.csv"},
		{Type: "Humidity Sensor", Path: "data/hum.csv"},
	}, specs)

	for _, bad := range []string{"no-separator", "=path.csv", "type="} {
		_, err := ParsePopulateSpecs([]string{bad})
		require.Error(t, err, bad)
	}
}

func TestSensorLake_Admin_PopulateRegistry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	db, err := sqlite.Open(ctx, filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	defer db.Close()

	log := sensortesting.NewLogger()
	store, err := registry.NewStore(registry.StoreConfig{Logger: log, DB: db})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))

	temp := filepath.Join(dir, "temp.csv")
	hum := filepath.Join(dir, "hum.csv")
	require.NoError(t, os.WriteFile(temp, []byte("device_id,timestamp\nT1,2024-01-01\nT2,2024-01-01\nT1,2024-01-02\n"), 0o644))
	require.NoError(t, os.WriteFile(hum, []byte("device_id,timestamp\nT2,2024-01-01\nH1,2024-01-01\n"), 0o644))

	n, err := PopulateRegistry(ctx, log, store, []PopulateSpec{
		{Type: "Temperature Sensor", Path: temp},
		{Type: "Humidity Sensor", Path: hum},
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	d, ok, err := store.Lookup(ctx, "T2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Temperature Sensor", d.Type)

	var out bytes.Buffer
	require.NoError(t, PrintDevices(ctx, store, &out))
	require.Equal(t, "H1\tHumidity Sensor\tActive\nT1\tTemperature Sensor\tActive\nT2\tTemperature Sensor\tActive\n3 device(s)\n", out.String())

	out.Reset()
	require.NoError(t, PrintMigrationStatus(ctx, store, &out))
	require.NotContains(t, out.String(), "pending")
	require.Contains(t, out.String(), "00001_master_devices.sql")

	_, err = PopulateRegistry(ctx, log, store, []PopulateSpec{{Type: "X", Path: filepath.Join(dir, "missing.csv")}})
	var readErr *source.ReadError
	require.ErrorAs(t, err, &readErr)
}
