package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taggedFixture() []TaggedRecord {
	tag := func(dataset, code string) TaggedRecord {
		rec := validVerifiedRecord()
		rec.Dataset = dataset
		return TaggedRecord{
			VerifiedRecord: rec,
			TaxonomyCode:   code,
			TaxonomyName:   TaxonomyName(code),
		}
	}

	return []TaggedRecord{
		tag("gsm8k", "calc_error"),
		tag("gsm8k", "calc_error"),
		tag("gsm8k", "reasoning_gap"),
		tag("mbpp", "logic_bug"),
		tag("mbpp", "edge_case_fail"),
		tag("mbpp", "edge_case_fail"),
		tag("mbpp", "edge_case_fail"),
		// Untagged: the generation was correct, contributes nothing.
		{VerifiedRecord: validVerifiedRecord()},
	}
}

func TestFoldTaxonomy(t *testing.T) {
	counts := FoldTaxonomy(taggedFixture())

	assert.Equal(t, map[TaxonomyKey]int{
		{Dataset: "gsm8k", Code: "calc_error"}:    2,
		{Dataset: "gsm8k", Code: "reasoning_gap"}: 1,
		{Dataset: "mbpp", Code: "logic_bug"}:      1,
		{Dataset: "mbpp", Code: "edge_case_fail"}: 3,
	}, counts)
}

func TestFoldTaxonomy_Empty(t *testing.T) {
	assert.Empty(t, FoldTaxonomy(nil))

	// Records without codes fold to an empty summary, not an error.
	untagged := []TaggedRecord{{VerifiedRecord: validVerifiedRecord()}}
	assert.Empty(t, FoldTaxonomy(untagged))
}

func TestFoldTaxonomy_FullRescan(t *testing.T) {
	records := taggedFixture()

	// Folding twice over the same records gives identical counts:
	// the summary is recomputed from scratch, never accumulated.
	first := FoldTaxonomy(records)
	second := FoldTaxonomy(records)
	assert.Equal(t, first, second)

	// Dropping a record is reflected immediately on re-fold.
	smaller := FoldTaxonomy(records[1:])
	assert.Equal(t, 1, smaller[TaxonomyKey{Dataset: "gsm8k", Code: "calc_error"}])
}

func TestTaxonomyRows(t *testing.T) {
	rows := TaxonomyRows(taggedFixture())
	require.Len(t, rows, 4)

	// Datasets ascend; within a dataset counts descend.
	assert.Equal(t, TaxonomyCount{Dataset: "gsm8k", Code: "calc_error", Name: "Calculation error", Count: 2}, rows[0])
	assert.Equal(t, TaxonomyCount{Dataset: "gsm8k", Code: "reasoning_gap", Name: "Reasoning gap", Count: 1}, rows[1])
	assert.Equal(t, TaxonomyCount{Dataset: "mbpp", Code: "edge_case_fail", Name: "Edge case not handled", Count: 3}, rows[2])
	assert.Equal(t, TaxonomyCount{Dataset: "mbpp", Code: "logic_bug", Name: "Logic bug", Count: 1}, rows[3])
}

func TestTaxonomyRows_StableTieOrder(t *testing.T) {
	tag := func(code string) TaggedRecord {
		rec := validVerifiedRecord()
		return TaggedRecord{VerifiedRecord: rec, TaxonomyCode: code, TaxonomyName: TaxonomyName(code)}
	}
	records := []TaggedRecord{tag("reasoning_gap"), tag("calc_error")}

	for i := 0; i < 20; i++ {
		rows := TaxonomyRows(records)
		require.Len(t, rows, 2)
		assert.Equal(t, "calc_error", rows[0].Code, "equal counts must order by code")
		assert.Equal(t, "reasoning_gap", rows[1].Code)
	}
}
