package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
)

// missingTokens are the cell spellings read as absent values.
var missingTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {}, "-NaN": {}, "-nan": {},
	"1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {},
	"n/a": {}, "nan": {}, "null": {},
}

// IsMissing reports whether a raw cell denotes a missing value.
func IsMissing(cell string) bool {
	_, ok := missingTokens[strings.TrimSpace(cell)]
	return ok
}

// ParseCSV reads a header row followed by data rows. Every row must have as many fields as the
// header. Cells are kept as text; interpretation happens against the schema later.
func ParseCSV(name string, r io.Reader) (record.Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return record.Dataset{}, errors.New("missing header row")
	}
	if err != nil {
		return record.Dataset{}, fmt.Errorf("failed to read header: %w", err)
	}
	header, err = normalizeHeader(header)
	if err != nil {
		return record.Dataset{}, err
	}

	var records []record.Record
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return record.Dataset{}, fmt.Errorf("failed to read row %d: %w", row, err)
		}
		values := make(map[string]record.Value, len(header))
		for i, col := range header {
			if IsMissing(fields[i]) {
				values[col] = record.Absent()
				continue
			}
			values[col] = record.String(fields[i])
		}
		records = append(records, record.New(name, row, values))
	}

	return record.NewDataset(name, header, records), nil
}

func normalizeHeader(header []string) ([]string, error) {
	out := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if _, ok := seen[h]; ok {
			return nil, fmt.Errorf("duplicate header column %q", h)
		}
		seen[h] = struct{}{}
		out[i] = h
	}
	return out, nil
}
