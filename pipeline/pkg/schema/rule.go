package schema

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
	"github.com/spf13/cast"
)

// Kind is the declared type of a field.
type Kind uint8

const (
	KindString Kind = iota
	KindNumber
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Rule is the immutable set of constraints attached to one field. All constraints must hold.
type Rule struct {
	kind     Kind
	required bool
	pattern  *regexp.Regexp
	min      *float64
	max      *float64
	allowed  []string
}

type RuleOption func(*Rule)

// Required rejects absent values.
func Required() RuleOption {
	return func(r *Rule) { r.required = true }
}

// Pattern panics if expr does not compile; rules are declared at process start.
func Pattern(expr string) RuleOption {
	re := regexp.MustCompile(expr)
	return func(r *Rule) { r.pattern = re }
}

// Min sets the inclusive lower bound of a numeric field.
func Min(v float64) RuleOption {
	return func(r *Rule) { r.min = &v }
}

// Max sets the inclusive upper bound of a numeric field.
func Max(v float64) RuleOption {
	return func(r *Rule) { r.max = &v }
}

// Allowed restricts a field to a fixed set of values.
func Allowed(values ...string) RuleOption {
	vals := slices.Clone(values)
	return func(r *Rule) { r.allowed = vals }
}

// NewRule creates a rule of the given kind with the given constraints.
func NewRule(kind Kind, opts ...RuleOption) Rule {
	r := Rule{kind: kind}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (r Rule) Kind() Kind { return r.kind }

func (r Rule) IsRequired() bool { return r.required }

func (r Rule) Pattern() *regexp.Regexp { return r.pattern }

func (r Rule) Min() (float64, bool) {
	if r.min == nil {
		return 0, false
	}
	return *r.min, true
}

func (r Rule) Max() (float64, bool) {
	if r.max == nil {
		return 0, false
	}
	return *r.max, true
}

func (r Rule) Allowed() []string { return slices.Clone(r.allowed) }

// Resolve interprets v as the rule's kind. Text read from a file satisfies a number rule when it
// parses as a finite float and a timestamp rule when it parses as a date-time. It returns false
// when v cannot be interpreted as the declared kind or is absent.
func (r Rule) Resolve(v record.Value) (record.Value, bool) {
	switch r.kind {
	case KindString:
		if _, ok := v.Str(); ok {
			return v, true
		}
	case KindNumber:
		if _, ok := v.Num(); ok {
			return v, true
		}
		if s, ok := v.Str(); ok {
			if f, err := ParseNumber(s); err == nil {
				return record.Number(f), true
			}
		}
	case KindTimestamp:
		if _, ok := v.Time(); ok {
			return v, true
		}
		if s, ok := v.Str(); ok {
			if t, err := ParseTimestamp(s); err == nil {
				return record.Timestamp(t), true
			}
		}
	}
	return v, false
}

// ParseNumber parses a finite float from text. Digit separators are not accepted.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsRune(s, '_') {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	f, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return f, nil
}

// ParseTimestamp parses the date-time spellings accepted in source files. Values without an
// explicit offset are taken as UTC; the result is always UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := cast.ToTimeInDefaultLocationE(s, time.UTC)
	if err == nil {
		return t.UTC(), nil
	}
	for _, layout := range extraTimestampLayouts {
		if t, perr := time.ParseInLocation(layout, s, time.UTC); perr == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// extraTimestampLayouts are tried in order after cast's layouts. Slash dates are month first.
var extraTimestampLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006/01/02",
	"2006/01/02 15:04",
	"2006/01/02 15:04:05",
	"01/02/2006",
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
	"Jan 2 2006",
	"Jan 2 2006 15:04:05",
	"Jan 2, 2006",
}
