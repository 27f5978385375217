package merge

import (
	"cmp"
	"slices"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
)

// Merge concatenates cleaned datasets in lexicographic order of their names, keeping each
// dataset's internal order, and removes composite-key collisions across sources so that the
// first-processed source wins. Columns are the union in order of first appearance.
func Merge(name string, datasets ...record.Dataset) record.Dataset {
	ordered := slices.Clone(datasets)
	slices.SortStableFunc(ordered, func(a, b record.Dataset) int {
		return cmp.Compare(a.Name, b.Name)
	})

	var columns []string
	var records []record.Record
	for _, ds := range ordered {
		for _, col := range ds.Columns() {
			if !slices.Contains(columns, col) {
				columns = append(columns, col)
			}
		}
		records = append(records, ds.Records()...)
	}

	return record.Dedup(record.NewDataset(name, columns, records))
}
