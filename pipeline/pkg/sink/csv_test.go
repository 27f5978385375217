package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	sensortesting "github.com/malbeclabs/sensorlake/utils/pkg/testing"
	"github.com/stretchr/testify/require"
)

func TestSensorLake_Sink_CSV(t *testing.T) {
	t.Parallel()

	t.Run("config validation", func(t *testing.T) {
		t.Parallel()

		_, err := NewCSV(CSVConfig{Dir: "x"})
		require.EqualError(t, err, "logger is required")
		_, err = NewCSV(CSVConfig{Logger: sensortesting.NewLogger()})
		require.EqualError(t, err, "output directory is required")
	})

	t.Run("writes and replaces a file", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "out")
		s, err := NewCSV(CSVConfig{Logger: sensortesting.NewLogger(), Dir: dir})
		require.NoError(t, err)
		ctx := context.Background()

		require.NoError(t, s.Write(ctx, "cleaned_data", cleanedDataset()))
		data, err := os.ReadFile(filepath.Join(dir, "cleaned_data.csv"))
		require.NoError(t, err)
		require.Equal(t,
			"device_id,timestamp,temperature,humidity,air_quality,particle_size,note\n"+
				"dev1,2024-01-01T12:30:00Z,22.46,40,Good,2.5,first\n"+
				"dev2,2024-01-01T12:31:00Z,-3.1,,Unknown,abc,\n",
			string(data))

		ds := cleanedDataset()
		require.NoError(t, s.Write(ctx, "cleaned_data", ds.WithRecords(nil)))
		data, err = os.ReadFile(s.Path("cleaned_data"))
		require.NoError(t, err)
		require.Equal(t, "device_id,timestamp,temperature,humidity,air_quality,particle_size,note\n", string(data))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)

		require.NoError(t, s.Drop(ctx, "cleaned_data"))
		require.NoError(t, s.Drop(ctx, "cleaned_data"))
		_, err = os.Stat(s.Path("cleaned_data"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}
