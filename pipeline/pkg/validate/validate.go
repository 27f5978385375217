package validate

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/schema"
)

// RuleKind names the rule a value violated.
type RuleKind string

const (
	RuleRequired RuleKind = "required"
	RuleType     RuleKind = "type"
	RulePattern  RuleKind = "pattern"
	RuleMin      RuleKind = "min"
	RuleMax      RuleKind = "max"
	RuleAllowed  RuleKind = "allowed"
)

// ValidationError is a single field-level violation.
type ValidationError struct {
	Field   string
	Rule    RuleKind
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// Report lists every violation found in one record, in schema field order.
type Report []ValidationError

func (r Report) Valid() bool { return len(r) == 0 }

// Messages renders the report for logging.
func (r Report) Messages() []string {
	out := make([]string, len(r))
	for i, e := range r {
		out[i] = e.Error()
	}
	return out
}

// Field checks v against rule and returns the first violation in the order
// required, type, pattern, min, max, allowed. An absent value passes when the field is optional.
func Field(name string, v record.Value, rule schema.Rule) *ValidationError {
	fail := func(kind RuleKind, msg string) *ValidationError {
		return &ValidationError{Field: name, Rule: kind, Message: msg}
	}

	if v.IsAbsent() {
		if rule.IsRequired() {
			return fail(RuleRequired, "is required but missing")
		}
		return nil
	}

	resolved, ok := rule.Resolve(v)
	if !ok {
		return fail(RuleType, "must be of type "+rule.Kind().String())
	}

	if re := rule.Pattern(); re != nil && !re.MatchString(resolved.String()) {
		return fail(RulePattern, "does not match the pattern "+re.String())
	}

	if f, isNum := resolved.Num(); isNum {
		if lo, ok := rule.Min(); ok && f < lo {
			return fail(RuleMin, "must be >= "+formatBound(lo))
		}
		if hi, ok := rule.Max(); ok && f > hi {
			return fail(RuleMax, "must be <= "+formatBound(hi))
		}
	}

	if allowed := rule.Allowed(); allowed != nil && !slices.Contains(allowed, resolved.String()) {
		return fail(RuleAllowed, fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")))
	}

	return nil
}

// Row validates every declared field of r. It never short-circuits across fields and never
// modifies r.
func Row(r record.Record, s schema.Schema) Report {
	var report Report
	for _, f := range s.Fields() {
		if err := Field(f.Name, r.Get(f.Name), f.Rule); err != nil {
			report = append(report, *err)
		}
	}
	return report
}

// Dataset returns one report per record, index-aligned with ds.
func Dataset(ds record.Dataset, s schema.Schema) []Report {
	reports := make([]Report, ds.Len())
	for i := range ds.Len() {
		reports[i] = Row(ds.At(i), s)
	}
	return reports
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
