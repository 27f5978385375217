package sink

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/schema"
)

// Sink persists a dataset under a table name, replacing any previous contents of that table.
type Sink interface {
	Name() string
	Write(ctx context.Context, table string, ds record.Dataset) error
}

// Dropper is implemented by sinks that can remove a table.
type Dropper interface {
	Drop(ctx context.Context, table string) error
}

// WriteError is returned when a sink fails to persist a table.
type WriteError struct {
	Sink  string
	Table string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write table %s to %s: %v", e.Table, e.Sink, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ErrNoColumns is returned for datasets without any columns, which no table can hold.
var ErrNoColumns = errors.New("dataset has no columns")

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTable rejects table names that are not plain identifiers.
func ValidateTable(table string) error {
	if table == "" {
		return errors.New("table name is required")
	}
	if !tableNameRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}

// Column is an output column and the storage kind chosen for it.
type Column struct {
	Name string
	Kind schema.Kind
}

// Plan picks a storage kind per dataset column. A column takes its schema kind only when every
// present value already has that kind; anything else, including columns unknown to the schema,
// is stored as text.
func Plan(ds record.Dataset, s schema.Schema) []Column {
	cols := ds.Columns()
	out := make([]Column, 0, len(cols))
	for _, name := range cols {
		kind := schema.KindString
		if rule, ok := s.Rule(name); ok && rule.Kind() != schema.KindString && uniform(ds, name, valueKind(rule.Kind())) {
			kind = rule.Kind()
		}
		out = append(out, Column{Name: name, Kind: kind})
	}
	return out
}

func valueKind(k schema.Kind) record.Kind {
	switch k {
	case schema.KindNumber:
		return record.KindNumber
	case schema.KindTimestamp:
		return record.KindTimestamp
	default:
		return record.KindString
	}
}

func uniform(ds record.Dataset, col string, kind record.Kind) bool {
	for _, r := range ds.Records() {
		v := r.Get(col)
		if !v.IsAbsent() && v.Kind() != kind {
			return false
		}
	}
	return true
}

// Cell converts a value to what a driver accepts for a column of the given kind. Absent values
// become nil.
func Cell(v record.Value, kind schema.Kind) any {
	if v.IsAbsent() {
		return nil
	}
	switch kind {
	case schema.KindNumber:
		f, _ := v.Num()
		return f
	case schema.KindTimestamp:
		ts, _ := v.Time()
		return ts
	default:
		return v.String()
	}
}

// Rows flattens a dataset into driver cells following the column plan.
func Rows(ds record.Dataset, cols []Column) [][]any {
	rows := make([][]any, 0, ds.Len())
	for _, r := range ds.Records() {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = Cell(r.Get(c.Name), c.Kind)
		}
		rows = append(rows, row)
	}
	return rows
}
