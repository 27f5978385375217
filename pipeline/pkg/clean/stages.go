package clean

import (
	"math"
	"slices"
	"strconv"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
	"github.com/malbeclabs/sensorlake/pipeline/pkg/schema"
)

// NormalizeTimestamps parses the timestamp column into canonical UTC instants and drops every
// record whose timestamp is absent or unparseable. Numeric schema fields holding numeric text are
// resolved to numbers in the same pass; text that does not parse is left for validation to report.
func NormalizeTimestamps(ds record.Dataset, s schema.Schema) (record.Dataset, int) {
	tsRule := schema.NewRule(schema.KindTimestamp)
	numeric := s.FieldsOfKind(schema.KindNumber)

	out := make([]record.Record, 0, ds.Len())
	dropped := 0
	for _, r := range ds.Records() {
		ts, ok := tsRule.Resolve(r.Get(record.TimestampColumn))
		if !ok {
			dropped++
			continue
		}
		r = r.With(record.TimestampColumn, ts)
		for _, col := range numeric {
			v := r.Get(col)
			if _, isStr := v.Str(); !isStr {
				continue
			}
			rule, _ := s.Rule(col)
			if num, ok := rule.Resolve(v); ok {
				r = r.With(col, num)
			}
		}
		out = append(out, r)
	}
	return ds.WithRecords(out), dropped
}

// Fill is the value an imputation substituted and how many cells received it.
type Fill struct {
	Value record.Value
	Count int
}

// Impute fills absent cells of the configured columns. Statistics come only from ds itself.
// Columns missing from ds are skipped, and a numeric column with no values keeps its gaps.
func Impute(ds record.Dataset, imputations []Imputation) (record.Dataset, map[string]Fill) {
	fills := make(map[string]Fill)
	for _, imp := range imputations {
		if !ds.HasColumn(imp.Column) {
			continue
		}
		fill, ok := fillValue(ds, imp)
		if !ok {
			continue
		}
		count := 0
		ds = ds.Map(func(r record.Record) record.Record {
			if !r.Get(imp.Column).IsAbsent() {
				return r
			}
			count++
			return r.With(imp.Column, fill)
		})
		if count > 0 {
			fills[imp.Column] = Fill{Value: fill, Count: count}
		}
	}
	return ds, fills
}

func fillValue(ds record.Dataset, imp Imputation) (record.Value, bool) {
	switch imp.Strategy {
	case StrategyConstant:
		return record.String(imp.Constant), true
	case StrategyMean:
		vals := presentNumbers(ds, imp.Column)
		if len(vals) == 0 {
			return record.Absent(), false
		}
		return record.Number(mean(vals)), true
	case StrategyMedian:
		vals := presentNumbers(ds, imp.Column)
		if len(vals) == 0 {
			return record.Absent(), false
		}
		return record.Number(median(vals)), true
	}
	return record.Absent(), false
}

func presentNumbers(ds record.Dataset, col string) []float64 {
	var vals []float64
	for _, r := range ds.Records() {
		if f, ok := r.Get(col).Num(); ok {
			vals = append(vals, f)
		}
	}
	return vals
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	sorted := slices.Clone(vals)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Round rounds the numeric cells of columns to precision decimals. Absent cells stay absent.
func Round(ds record.Dataset, columns []string, precision int) record.Dataset {
	var present []string
	for _, col := range columns {
		if ds.HasColumn(col) {
			present = append(present, col)
		}
	}
	if len(present) == 0 {
		return ds
	}
	return ds.Map(func(r record.Record) record.Record {
		for _, col := range present {
			if f, ok := r.Get(col).Num(); ok {
				r = r.With(col, record.Number(roundTo(f, precision)))
			}
		}
		return r
	})
}

// roundTo rounds through decimal formatting, which is correctly rounded for the exact binary value.
func roundTo(f float64, precision int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', precision, 64), 64)
	if err != nil {
		return f
	}
	return r
}

// RejectOutliers filters columns in order. For each column the population mean and standard
// deviation are computed over the records that survived the previous columns, with absent or
// non-numeric cells counted as 0, and records whose z-score falls outside [-threshold, threshold]
// are removed. A column with zero spread removes nothing.
func RejectOutliers(ds record.Dataset, columns []string, threshold float64) (record.Dataset, map[string]int) {
	dropped := make(map[string]int)
	for _, col := range columns {
		if !ds.HasColumn(col) || ds.Len() == 0 {
			continue
		}
		before := ds.Len()
		ds = rejectColumn(ds, col, threshold)
		if n := before - ds.Len(); n > 0 {
			dropped[col] = n
		}
	}
	return ds, dropped
}

func rejectColumn(ds record.Dataset, col string, threshold float64) record.Dataset {
	vals := make([]float64, ds.Len())
	for i := range ds.Len() {
		vals[i] = zeroIfMissing(ds.At(i).Get(col))
	}
	mu := mean(vals)
	sq := 0.0
	for _, v := range vals {
		sq += (v - mu) * (v - mu)
	}
	sigma := math.Sqrt(sq / float64(len(vals)))

	i := 0
	return ds.Filter(func(r record.Record) bool {
		v := vals[i]
		i++
		if sigma == 0 {
			return true
		}
		z := (v - mu) / sigma
		return z >= -threshold && z <= threshold
	})
}

func zeroIfMissing(v record.Value) float64 {
	if f, ok := v.Num(); ok {
		return f
	}
	return 0
}
