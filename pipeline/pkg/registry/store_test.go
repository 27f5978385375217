package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/sqlite"
	sensortesting "github.com/malbeclabs/sensorlake/utils/pkg/testing"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, clock clockwork.Clock) *Store {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(StoreConfig{Logger: sensortesting.NewLogger(), DB: db, Clock: clock})
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSensorLake_Registry_Store(t *testing.T) {
	t.Parallel()

	t.Run("config validation", func(t *testing.T) {
		t.Parallel()

		_, err := NewStore(StoreConfig{})
		require.EqualError(t, err, "logger is required")
		_, err = NewStore(StoreConfig{Logger: sensortesting.NewLogger()})
		require.EqualError(t, err, "db is required")
	})

	t.Run("migrations are idempotent", func(t *testing.T) {
		t.Parallel()

		s := newTestStore(t, nil)
		require.NoError(t, s.Migrate(context.Background()))

		states, err := s.MigrationStatus(context.Background())
		require.NoError(t, err)
		require.Len(t, states, 2)
		for _, st := range states {
			require.True(t, st.Applied, st.Path)
		}
		require.Equal(t, int64(1), states[0].Version)
		require.Equal(t, int64(2), states[1].Version)
	})

	t.Run("populate inserts only unknown devices", func(t *testing.T) {
		t.Parallel()

		clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
		s := newTestStore(t, clock)
		ctx := context.Background()

		n, err := s.Populate(ctx, []Device{
			{ID: "dev1", Type: "Temperature Sensor", Status: StatusActive},
			{ID: "dev2", Type: "Temperature Sensor", Status: StatusActive},
		})
		require.NoError(t, err)
		require.Equal(t, 2, n)

		n, err = s.Populate(ctx, []Device{
			{ID: "dev2", Type: "Air Quality Sensor", Status: "Retired"},
			{ID: "dev3", Type: "Air Quality Sensor", Status: StatusActive},
		})
		require.NoError(t, err)
		require.Equal(t, 1, n)

		devices, err := s.Devices(ctx)
		require.NoError(t, err)
		require.Equal(t, []Device{
			{ID: "dev1", Type: "Temperature Sensor", Status: StatusActive},
			{ID: "dev2", Type: "Temperature Sensor", Status: StatusActive},
			{ID: "dev3", Type: "Air Quality Sensor", Status: StatusActive},
		}, devices)

		var registeredAt string
		require.NoError(t, s.cfg.DB.QueryRowContext(ctx, `SELECT registered_at FROM master_devices WHERE device_id = 'dev1'`).Scan(&registeredAt))
		require.Equal(t, "2024-03-01T09:00:00Z", registeredAt)
	})

	t.Run("lookup", func(t *testing.T) {
		t.Parallel()

		s := newTestStore(t, nil)
		ctx := context.Background()
		_, err := s.Populate(ctx, []Device{{ID: "dev1", Type: "Humidity Sensor", Status: StatusActive}})
		require.NoError(t, err)

		d, ok, err := s.Lookup(ctx, "dev1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, Device{ID: "dev1", Type: "Humidity Sensor", Status: StatusActive}, d)

		_, ok, err = s.Lookup(ctx, "ghost")
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestSensorLake_Registry_DevicesFromDataset(t *testing.T) {
	t.Parallel()

	rec := func(row int, id record.Value) record.Record {
		return record.New("a.csv", row, map[string]record.Value{record.DeviceIDColumn: id})
	}
	ds := record.NewDataset("a.csv", []string{record.DeviceIDColumn}, []record.Record{
		rec(1, record.String("dev2")),
		rec(2, record.String("dev1")),
		rec(3, record.String("dev2")),
		rec(4, record.Absent()),
		rec(5, record.String("")),
	})

	require.Equal(t, []Device{
		{ID: "dev2", Type: "Particle Sensor", Status: StatusActive},
		{ID: "dev1", Type: "Particle Sensor", Status: StatusActive},
	}, DevicesFromDataset(ds, "Particle Sensor"))
}
