package sink

import (
	"testing"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/schema"
	"github.com/stretchr/testify/require"
)

func TestSensorLake_Sink_ValidateTable(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"cleaned_data", "_t", "T1"} {
		require.NoError(t, ValidateTable(ok), ok)
	}
	for _, bad := range []string{"", "1abc", "a-b", "a b", "x;DROP TABLE y", `a"b`} {
		require.Error(t, ValidateTable(bad), bad)
	}
}

func TestSensorLake_Sink_Plan(t *testing.T) {
	t.Parallel()

	cols := Plan(cleanedDataset(), sensorSchema())
	require.Equal(t, []Column{
		{Name: "device_id", Kind: schema.KindString},
		{Name: "timestamp", Kind: schema.KindTimestamp},
		{Name: "temperature", Kind: schema.KindNumber},
		{Name: "humidity", Kind: schema.KindNumber},
		{Name: "air_quality", Kind: schema.KindString},
		// A text cell left in a numeric column forces text storage.
		{Name: "particle_size", Kind: schema.KindString},
		{Name: "note", Kind: schema.KindString},
	}, cols)
}

func TestSensorLake_Sink_Cell(t *testing.T) {
	t.Parallel()

	require.Nil(t, Cell(record.Absent(), schema.KindNumber))
	require.Equal(t, 1.5, Cell(record.Number(1.5), schema.KindNumber))
	require.Equal(t, "1.5", Cell(record.Number(1.5), schema.KindString))
	require.Equal(t, testTime, Cell(record.Timestamp(testTime), schema.KindTimestamp))
	require.Equal(t, "dev1", Cell(record.String("dev1"), schema.KindString))

	rows := Rows(cleanedDataset(), Plan(cleanedDataset(), sensorSchema()))
	require.Len(t, rows, 2)
	require.Equal(t, []any{"dev2", testTime.Add(60e9), -3.1, nil, "Unknown", "abc", nil}, rows[1])
}
