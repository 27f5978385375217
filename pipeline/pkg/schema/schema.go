package schema

import (
	"errors"
	"fmt"
	"slices"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
)

// Field pairs a column name with its rule.
type Field struct {
	Name string
	Rule Rule
}

// Schema is the ordered, immutable set of field rules for a run. Build it once at startup and
// pass it to every component that validates or interprets values.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New creates a schema from fields in declaration order. Field names must be unique.
func New(fields ...Field) (Schema, error) {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return Schema{}, errors.New("field name is required")
		}
		if _, ok := index[f.Name]; ok {
			return Schema{}, fmt.Errorf("duplicate field %q", f.Name)
		}
		index[f.Name] = i
	}
	return Schema{fields: slices.Clone(fields), index: index}, nil
}

// MustNew is New but panics on an invalid field list.
func MustNew(fields ...Field) Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the declared fields in declaration order.
func (s Schema) Fields() []Field { return slices.Clone(s.fields) }

func (s Schema) Len() int { return len(s.fields) }

func (s Schema) Rule(name string) (Rule, bool) {
	i, ok := s.index[name]
	if !ok {
		return Rule{}, false
	}
	return s.fields[i].Rule, true
}

// FieldsOfKind returns the names of fields declared with kind, in declaration order.
func (s Schema) FieldsOfKind(kind Kind) []string {
	var names []string
	for _, f := range s.fields {
		if f.Rule.Kind() == kind {
			names = append(names, f.Name)
		}
	}
	return names
}

const (
	TemperatureColumn  = "temperature"
	HumidityColumn     = "humidity"
	AirQualityColumn   = "air_quality"
	ParticleSizeColumn = "particle_size"

	DeviceIDPattern = `^[A-Za-z]+[0-9_]+$`
)

// Sensor returns the schema shared by every telemetry source.
func Sensor() Schema {
	return MustNew(
		Field{Name: record.DeviceIDColumn, Rule: NewRule(KindString, Required(), Pattern(DeviceIDPattern))},
		Field{Name: record.TimestampColumn, Rule: NewRule(KindTimestamp, Required())},
		Field{Name: TemperatureColumn, Rule: NewRule(KindNumber, Min(-50), Max(100))},
		Field{Name: HumidityColumn, Rule: NewRule(KindNumber, Min(0), Max(100))},
		Field{Name: AirQualityColumn, Rule: NewRule(KindString, Allowed("Good", "Moderate", "Poor"))},
		Field{Name: ParticleSizeColumn, Rule: NewRule(KindNumber, Min(0), Max(10000))},
	)
}
