package domain

import (
	"fmt"
	"strings"
)

// TaxonomyRule maps trigger keywords found in a judge rationale to one
// error category. Rules are evaluated in priority order and the first
// match wins.
type TaxonomyRule struct {
	// Code is the stable machine identifier, unique across all domains.
	Code string

	// Name is the human-readable label used in reports.
	Name string

	// Triggers are the lowercase substrings that select this rule.
	Triggers []string
}

// Per-domain taxonomy tables. The tables are fixed: analysis across
// runs depends on codes keeping their meaning, so rules are only ever
// appended in new minor versions, never reworded or reordered.
var (
	mathTaxonomy = []TaxonomyRule{
		{
			Code: "calc_error",
			Name: "Calculation error",
			Triggers: []string{
				"arithmetic", "calculation", "miscalculat", "computation",
				"computed incorrectly", "wrong total", "sum is wrong",
			},
		},
		{
			Code: "reasoning_gap",
			Name: "Reasoning gap",
			Triggers: []string{
				"reasoning", "logical error", "invalid step", "skipped a step",
				"contradict", "does not follow", "unjustified",
			},
		},
		{
			Code: "format_mismatch",
			Name: "Format mismatch",
			Triggers: []string{
				"format", "wrong unit", "units", "notation", "rounded",
				"rounding", "decimal places",
			},
		},
		{
			Code: "instruction_miss",
			Name: "Instruction not followed",
			Triggers: []string{
				"instruction", "did not follow", "ignored the", "asked for",
				"was requested", "answered a different",
			},
		},
	}

	codeTaxonomy = []TaxonomyRule{
		{
			Code: "syntax_error",
			Name: "Syntax error",
			Triggers: []string{
				"syntax", "does not compile", "compilation", "parse error",
				"unparsable", "indentation", "missing bracket",
			},
		},
		{
			Code: "logic_bug",
			Name: "Logic bug",
			Triggers: []string{
				"logic", "wrong output", "incorrect output", "wrong result",
				"incorrect result", "algorithm is wrong", "wrong branch",
			},
		},
		{
			Code: "edge_case_fail",
			Name: "Edge case not handled",
			Triggers: []string{
				"edge case", "off-by-one", "off by one", "boundary",
				"empty input", "corner case", "last test case", "overflow",
			},
		},
		{
			Code: "spec_misread",
			Name: "Problem misread",
			Triggers: []string{
				"misread", "misunderstood", "misinterpret", "requirement",
				"wrong problem", "solves a different",
			},
		},
	}

	factualTaxonomy = []TaxonomyRule{
		{
			Code: "factual_hallucination",
			Name: "Factual hallucination",
			Triggers: []string{
				"hallucinat", "fabricat", "invented", "made up",
				"false claim", "factually incorrect", "no such",
			},
		},
		{
			Code: "misleading_generalization",
			Name: "Misleading generalization",
			Triggers: []string{
				"generaliz", "overstate", "oversimplif", "misleading",
				"overly broad", "not always true",
			},
		},
		{
			Code: "ambiguous_misread",
			Name: "Ambiguous question misread",
			Triggers: []string{
				"ambiguous", "ambiguity", "misread", "misinterpret",
				"unclear question", "different sense",
			},
		},
		{
			Code: "hedged_nonanswer",
			Name: "Hedged non-answer",
			Triggers: []string{
				"hedge", "refus", "did not answer", "non-answer",
				"evasive", "vague", "no definite answer",
			},
		},
	}

	// catchAllCodes maps each domain to the code assigned when no
	// trigger matches the rationale.
	catchAllCodes = map[Domain]string{
		DomainMath:    "reasoning_gap",
		DomainCode:    "logic_bug",
		DomainFactual: "ambiguous_misread",
	}
)

// TaxonomyFor returns the ordered classification rules for a domain.
// The returned slice is a copy; callers may reorder or filter it
// without affecting classification.
func TaxonomyFor(d Domain) ([]TaxonomyRule, error) {
	var rules []TaxonomyRule
	switch d {
	case DomainMath:
		rules = mathTaxonomy
	case DomainCode:
		rules = codeTaxonomy
	case DomainFactual:
		rules = factualTaxonomy
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, d)
	}

	out := make([]TaxonomyRule, len(rules))
	copy(out, rules)
	return out, nil
}

// Classify maps a judge rationale to the first taxonomy rule whose
// trigger appears in the text, compared case-insensitively. When no
// trigger matches, the domain's catch-all rule is returned, so every
// incorrect generation lands in exactly one category.
//
// Classification is deterministic: the same rationale and domain always
// yield the same code. Returns ErrUnknownDomain for domains outside the
// supported set.
func Classify(rationale string, d Domain) (TaxonomyRule, error) {
	rules, err := TaxonomyFor(d)
	if err != nil {
		return TaxonomyRule{}, err
	}

	lowered := strings.ToLower(rationale)
	for _, rule := range rules {
		for _, trigger := range rule.Triggers {
			if strings.Contains(lowered, trigger) {
				return rule, nil
			}
		}
	}

	fallback := catchAllCodes[d]
	for _, rule := range rules {
		if rule.Code == fallback {
			return rule, nil
		}
	}
	// Unreachable while catchAllCodes stays aligned with the tables.
	return TaxonomyRule{}, fmt.Errorf("%w: no catch-all rule for %q", ErrUnknownDomain, d)
}

// TaxonomyName resolves a code to its human-readable name across all
// domain tables. Unknown codes map to themselves so reports never show
// blank labels for historical data.
func TaxonomyName(code string) string {
	for _, table := range [][]TaxonomyRule{mathTaxonomy, codeTaxonomy, factualTaxonomy} {
		for _, rule := range table {
			if rule.Code == code {
				return rule.Name
			}
		}
	}
	return code
}

// TagRecord derives the taxonomy annotation for one verified record.
// Correct generations are passed through untagged; incorrect ones are
// classified from the concatenated candidate rationales, so a trigger
// mentioned by any judge vote selects the category.
//
// Correctness is decided against the record's own embedded reference
// answer. Returns ErrUnknownDomain when the record's domain has no
// taxonomy table; callers skip and count such records.
func TagRecord(rec VerifiedRecord) (TaggedRecord, error) {
	tagged := TaggedRecord{VerifiedRecord: rec}
	if IsCorrect(rec.Gen.Answer, rec.ReferenceAnswer, rec.Domain) {
		return tagged, nil
	}

	var sb strings.Builder
	for i, v := range rec.Verify.Candidates {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(v.Rationale)
	}

	rule, err := Classify(sb.String(), rec.Domain)
	if err != nil {
		return TaggedRecord{}, err
	}

	tagged.TaxonomyCode = rule.Code
	tagged.TaxonomyName = rule.Name
	return tagged, nil
}
