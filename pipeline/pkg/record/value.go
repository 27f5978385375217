package record

import (
	"strconv"
	"time"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindString
	KindNumber
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Value is a single cell. The zero Value is absent.
type Value struct {
	kind Kind
	str  string
	num  float64
	ts   time.Time
}

func Absent() Value { return Value{} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Timestamp stores t as a UTC instant.
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, ts: t.UTC()} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) Time() (time.Time, bool) { return v.ts, v.kind == KindTimestamp }

// Equal reports whether both values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindTimestamp:
		return v.ts.Equal(o.ts)
	default:
		return true
	}
}

// String renders the value the way it is written to text outputs. Absent renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindTimestamp:
		return v.ts.Format(TimestampLayout)
	default:
		return ""
	}
}

// Any returns the payload as a plain Go value for database drivers; absent is nil.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindTimestamp:
		return v.ts
	default:
		return nil
	}
}

// TimestampLayout is the canonical text form of timestamps in outputs.
const TimestampLayout = "2006-01-02T15:04:05.999999999Z07:00"
