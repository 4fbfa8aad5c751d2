package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// numberRe matches signed decimal numbers embedded in answer text.
var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Numeric comparison tolerances for math answers. Two parsed numbers
// match when their difference is within the larger of the absolute and
// relative bounds, so "4" and "4.0" compare equal and large values
// tolerate float formatting drift.
const (
	absTolerance = 1e-9
	relTolerance = 1e-6
)

// IsCorrect reports whether a candidate answer matches the reference
// answer under the domain's comparison rules.
//
// All domains trim surrounding whitespace first, and an empty candidate
// never matches. Math answers are stripped of currency symbols, percent
// signs, and thousands separators, then compared numerically within
// tolerance when both sides parse as numbers; otherwise the stripped
// strings are compared exactly after case folding. Code and factual
// answers use case-insensitive exact matching with Unicode-aware
// folding.
//
// The comparison is deterministic and never errors: unparseable input
// degrades to string comparison rather than failing the pipeline.
func IsCorrect(candidate, reference string, d Domain) bool {
	cand := strings.TrimSpace(candidate)
	ref := strings.TrimSpace(reference)
	if cand == "" {
		return false
	}

	if d == DomainMath {
		cand = stripNumericNoise(cand)
		ref = stripNumericNoise(ref)
		cn, cok := parseNumber(cand)
		rn, rok := parseNumber(ref)
		if cok && rok {
			return numbersClose(cn, rn)
		}
	}

	caser := cases.Fold()
	return caser.String(cand) == caser.String(ref)
}

// Similarity returns a normalized edit-distance similarity in [0, 1]
// between a candidate and reference answer, where 1.0 is an exact match
// after trimming and case folding. Used for near-miss analysis in
// reports; never used for correctness decisions.
func Similarity(candidate, reference string) float64 {
	caser := cases.Fold()
	cand := caser.String(strings.TrimSpace(candidate))
	ref := caser.String(strings.TrimSpace(reference))
	if cand == ref {
		return 1.0
	}

	maxLen := utf8.RuneCountInString(cand)
	if refLen := utf8.RuneCountInString(ref); refLen > maxLen {
		maxLen = refLen
	}

	distance := levenshtein.ComputeDistance(cand, ref)
	return 1.0 - float64(distance)/float64(maxLen)
}

// LastNumber extracts the last number embedded in s, so answers like
// "The total is 42 dollars" yield 42. Used by components that grade
// free-form numeric answers rather than already-extracted ones.
func LastNumber(s string) (float64, bool) {
	matches := numberRe.FindAllString(s, -1)
	if len(matches) == 0 {
		return 0, false
	}
	n, err := strconv.ParseFloat(matches[len(matches)-1], 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// stripNumericNoise removes the formatting characters that commonly
// decorate numeric answers: currency symbols, percent signs, and comma
// thousands separators.
func stripNumericNoise(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '$', '€', '£', '%', ',':
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// parseNumber parses s as a finite float64. Non-finite values such as
// "Inf" are rejected so they fall back to string comparison.
func parseNumber(s string) (float64, bool) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// numbersClose reports whether two finite numbers are equal within the
// configured absolute and relative tolerances.
func numbersClose(a, b float64) bool {
	bound := relTolerance * math.Max(math.Abs(a), math.Abs(b))
	if absTolerance > bound {
		bound = absTolerance
	}
	return math.Abs(a-b) <= bound
}
