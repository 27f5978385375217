package record

import "maps"

// Record is one row of a source file. Records are treated as immutable: With returns a copy.
type Record struct {
	// Source is the name of the file the record was read from.
	Source string
	// Row is the 1-based data row number within Source (the header is not counted).
	Row int

	values map[string]Value
}

func New(source string, row int, values map[string]Value) Record {
	return Record{Source: source, Row: row, values: maps.Clone(values)}
}

// Get returns the value for a field; missing fields are absent.
func (r Record) Get(field string) Value {
	return r.values[field]
}

// With returns a copy of r with field set to v.
func (r Record) With(field string, v Value) Record {
	values := make(map[string]Value, len(r.values)+1)
	maps.Copy(values, r.values)
	values[field] = v
	return Record{Source: r.Source, Row: r.Row, values: values}
}

// Fields returns a copy of the record's field map.
func (r Record) Fields() map[string]Value {
	return maps.Clone(r.values)
}
