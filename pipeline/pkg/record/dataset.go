package record

import (
	"slices"
	"strconv"
)

const (
	DeviceIDColumn  = "device_id"
	TimestampColumn = "timestamp"
)

// Dataset is an ordered sequence of records plus the ordered column names they were read with.
// Record order is significant: deduplication keeps the first occurrence.
type Dataset struct {
	Name    string
	columns []string
	records []Record
}

func NewDataset(name string, columns []string, records []Record) Dataset {
	return Dataset{Name: name, columns: slices.Clone(columns), records: slices.Clone(records)}
}

func (d Dataset) Len() int { return len(d.records) }

func (d Dataset) Columns() []string { return slices.Clone(d.columns) }

func (d Dataset) HasColumn(name string) bool { return slices.Contains(d.columns, name) }

func (d Dataset) Records() []Record { return slices.Clone(d.records) }

func (d Dataset) At(i int) Record { return d.records[i] }

// WithRecords returns a dataset with the same name and columns holding records.
func (d Dataset) WithRecords(records []Record) Dataset {
	return NewDataset(d.Name, d.columns, records)
}

// WithColumns returns a dataset whose column list has extra appended (skipping names it already has).
func (d Dataset) WithColumns(extra ...string) Dataset {
	cols := slices.Clone(d.columns)
	for _, c := range extra {
		if !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	return Dataset{Name: d.Name, columns: cols, records: d.records}
}

// Filter returns the records for which keep is true, preserving order.
func (d Dataset) Filter(keep func(Record) bool) Dataset {
	out := make([]Record, 0, len(d.records))
	for _, r := range d.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return Dataset{Name: d.Name, columns: d.columns, records: out}
}

// Map returns a dataset with fn applied to every record.
func (d Dataset) Map(fn func(Record) Record) Dataset {
	out := make([]Record, len(d.records))
	for i, r := range d.records {
		out[i] = fn(r)
	}
	return Dataset{Name: d.Name, columns: d.columns, records: out}
}

// Key is the composite (device_id, timestamp) identity of a record.
type Key struct {
	DeviceID string
	Device   Kind
	// Instant is the canonical timestamp in UnixNano, or the raw text when the timestamp
	// was never normalised.
	Instant string
}

// KeyOf builds the composite key of r. Timestamps compare as UTC instants.
func KeyOf(r Record) Key {
	dev := r.Get(DeviceIDColumn)
	ts := r.Get(TimestampColumn)
	k := Key{DeviceID: dev.String(), Device: dev.Kind()}
	if t, ok := ts.Time(); ok {
		k.Instant = strconv.FormatInt(t.UnixNano(), 10)
	} else {
		k.Instant = ts.Kind().String() + ":" + ts.String()
	}
	return k
}

// Dedup keeps the first record for every composite key, preserving order.
func Dedup(d Dataset) Dataset {
	seen := make(map[Key]struct{}, len(d.records))
	return d.Filter(func(r Record) bool {
		k := KeyOf(r)
		if _, ok := seen[k]; ok {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
}
