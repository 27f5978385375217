package schema

import (
	"testing"
	"time"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
	"github.com/stretchr/testify/require"
)

func TestSensorLake_Schema_New(t *testing.T) {
	t.Parallel()

	t.Run("rejects duplicate fields", func(t *testing.T) {
		t.Parallel()
		_, err := New(
			Field{Name: "a", Rule: NewRule(KindString)},
			Field{Name: "a", Rule: NewRule(KindNumber)},
		)
		require.ErrorContains(t, err, `duplicate field "a"`)
	})

	t.Run("rejects empty names", func(t *testing.T) {
		t.Parallel()
		_, err := New(Field{Rule: NewRule(KindString)})
		require.ErrorContains(t, err, "field name is required")
	})

	t.Run("fields keep declaration order", func(t *testing.T) {
		t.Parallel()
		s := Sensor()
		var names []string
		for _, f := range s.Fields() {
			names = append(names, f.Name)
		}
		require.Equal(t, []string{"device_id", "timestamp", "temperature", "humidity", "air_quality", "particle_size"}, names)
		require.Equal(t, []string{"temperature", "humidity", "particle_size"}, s.FieldsOfKind(KindNumber))
	})
}

func TestSensorLake_Schema_Rule(t *testing.T) {
	t.Parallel()

	t.Run("options are captured", func(t *testing.T) {
		t.Parallel()
		r := NewRule(KindNumber, Required(), Min(-50), Max(100))
		require.True(t, r.IsRequired())
		lo, ok := r.Min()
		require.True(t, ok)
		require.Equal(t, -50.0, lo)
		hi, ok := r.Max()
		require.True(t, ok)
		require.Equal(t, 100.0, hi)
		require.Nil(t, r.Pattern())
	})

	t.Run("allowed values cannot be mutated through the accessor", func(t *testing.T) {
		t.Parallel()
		r := NewRule(KindString, Allowed("Good", "Poor"))
		vals := r.Allowed()
		vals[0] = "Bad"
		require.Equal(t, []string{"Good", "Poor"}, r.Allowed())
	})

	t.Run("unknown field lookup", func(t *testing.T) {
		t.Parallel()
		_, ok := Sensor().Rule("pressure")
		require.False(t, ok)
	})
}

func TestSensorLake_Schema_Resolve(t *testing.T) {
	t.Parallel()

	num := NewRule(KindNumber)
	str := NewRule(KindString)
	ts := NewRule(KindTimestamp)

	t.Run("numeric text resolves to a number", func(t *testing.T) {
		t.Parallel()
		v, ok := num.Resolve(record.String(" 21.5 "))
		require.True(t, ok)
		f, _ := v.Num()
		require.Equal(t, 21.5, f)
	})

	t.Run("non numeric text does not resolve", func(t *testing.T) {
		t.Parallel()
		_, ok := num.Resolve(record.String("warm"))
		require.False(t, ok)
		_, ok = num.Resolve(record.String("inf"))
		require.False(t, ok)
	})

	t.Run("numbers do not satisfy string rules", func(t *testing.T) {
		t.Parallel()
		_, ok := str.Resolve(record.Number(1))
		require.False(t, ok)
		_, ok = str.Resolve(record.String("T1"))
		require.True(t, ok)
	})

	t.Run("timestamp text resolves to UTC", func(t *testing.T) {
		t.Parallel()
		v, ok := ts.Resolve(record.String("2024-01-01T00:00:00"))
		require.True(t, ok)
		got, _ := v.Time()
		require.True(t, got.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("absent never resolves", func(t *testing.T) {
		t.Parallel()
		_, ok := num.Resolve(record.Absent())
		require.False(t, ok)
	})
}

func TestSensorLake_Schema_ParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-01-01T12:30:00",
		"2024-01-01 12:30:00",
		"2024-01-01T12:30:00Z",
		"2024-01-01T14:30:00+02:00",
	} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		require.True(t, got.Equal(want), in)
		require.Equal(t, time.UTC, got.Location(), in)
	}

	for _, in := range []string{"", "not a date", "2024-13-45T99:00:00"} {
		_, err := ParseTimestamp(in)
		require.Error(t, err, in)
	}
}

func TestSensorLake_Schema_ParseTimestampLayouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-01 00:00", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-03-05T08:15", time.Date(2024, 3, 5, 8, 15, 0, 0, time.UTC)},
		{"2024/01/01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024/01/01 06:30:15", time.Date(2024, 1, 1, 6, 30, 15, 0, time.UTC)},
		{"01/02/2024", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"01/02/2024 23:59:59", time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC)},
		{"Jan 1 2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"  2024-01-01 00:00  ", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			require.True(t, got.Equal(tt.want), "got %s", got)
			require.Equal(t, time.UTC, got.Location())
		})
	}

	t.Run("still rejects impossible dates", func(t *testing.T) {
		t.Parallel()
		for _, in := range []string{"2024/13/01", "13/45/2024", "Foo 1 2024"} {
			_, err := ParseTimestamp(in)
			require.Error(t, err, in)
		}
	})
}

func TestSensorLake_Schema_ParseNumber(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]float64{"21.5": 21.5, " -3 ": -3, "1e2": 100} {
		got, err := ParseNumber(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{"1_000", "1_0.5", "abc", "NaN", "Inf"} {
		_, err := ParseNumber(in)
		require.Error(t, err, in)
	}

	t.Run("digit separators are a type error", func(t *testing.T) {
		t.Parallel()
		rule := NewRule(KindNumber)
		v, ok := rule.Resolve(record.String("1_000"))
		require.False(t, ok)
		s, isStr := v.Str()
		require.True(t, isStr)
		require.Equal(t, "1_000", s)
	})
}
