package domain

import "sort"

// TaxonomyKey identifies one cumulative taxonomy bucket.
type TaxonomyKey struct {
	// Dataset names the source benchmark.
	Dataset string `json:"dataset"`

	// Code is the taxonomy error code.
	Code string `json:"code"`
}

// TaxonomyCount is one row of the cumulative taxonomy summary.
type TaxonomyCount struct {
	Dataset string `json:"dataset"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Count   int    `json:"count"`
}

// FoldTaxonomy rebuilds cumulative error counts from scratch over the
// given tagged records, keyed by (dataset, code). Untagged records,
// those with an empty taxonomy code, contribute nothing.
//
// The fold is a pure function of its input: callers refresh the
// summary by re-running it over the full record set, never by
// incrementally patching a previous result, so the summary can never
// drift from the records it describes.
func FoldTaxonomy(records []TaggedRecord) map[TaxonomyKey]int {
	counts := make(map[TaxonomyKey]int)
	for _, rec := range records {
		if rec.TaxonomyCode == "" {
			continue
		}
		counts[TaxonomyKey{Dataset: rec.Dataset, Code: rec.TaxonomyCode}]++
	}
	return counts
}

// TaxonomyRows folds the records and returns displayable rows sorted
// by dataset ascending, then count descending, then code ascending, so
// the most frequent error families lead each dataset section and equal
// counts render in a stable order.
func TaxonomyRows(records []TaggedRecord) []TaxonomyCount {
	counts := FoldTaxonomy(records)

	rows := make([]TaxonomyCount, 0, len(counts))
	for key, count := range counts {
		rows = append(rows, TaxonomyCount{
			Dataset: key.Dataset,
			Code:    key.Code,
			Name:    TaxonomyName(key.Code),
			Count:   count,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Dataset != rows[j].Dataset {
			return rows[i].Dataset < rows[j].Dataset
		}
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Code < rows[j].Code
	})
	return rows
}
