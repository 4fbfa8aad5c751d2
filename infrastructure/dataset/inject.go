package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/ahrav/go-gvgap/internal/domain"
)

// Error types stamped on corrupted variants.
const (
	ErrorOffByOne     = "off_by_one"
	ErrorSignFlip     = "sign_flip"
	ErrorSmallPerturb = "small_perturb"
)

// DefaultInjectionSeed keeps corrupted datasets reproducible across
// machines unless a caller opts into a different stream.
const DefaultInjectionSeed = 42

// InjectedRecord is one corrupted variant of a numeric-answer question,
// used to measure how reliably a judge catches known-wrong answers.
type InjectedRecord struct {
	// ID is the source question id suffixed ::v<N>.
	ID string `json:"id" validate:"required"`

	// Question is the unchanged problem text.
	Question string `json:"question" validate:"required"`

	// ReferenceAnswer is the true final answer, reformatted from its
	// parsed numeric value.
	ReferenceAnswer string `json:"reference_answer" validate:"required"`

	// CorruptedAnswer is the deliberately wrong answer.
	CorruptedAnswer string `json:"corrupted_answer" validate:"required"`

	// ErrorInjected marks the record as corrupted. Always 1.
	ErrorInjected int `json:"error_injected"`

	// ErrorType names the corruption applied.
	ErrorType string `json:"error_type" validate:"required,oneof=off_by_one sign_flip small_perturb"`
}

// Validate checks that the record satisfies the injected contract.
func (r *InjectedRecord) Validate() error { return datasetValidator.Struct(r) }

// AsPair converts the record into a question/candidate pair so any
// ports.Judge can evaluate the corrupted answer directly. Dataset and
// split are recovered from the id prefix.
func (r *InjectedRecord) AsPair() (domain.Question, domain.Candidate) {
	ds, split := "unknown", "unknown"
	if parts := strings.SplitN(r.ID, "/", 3); len(parts) == 3 {
		ds, split = parts[0], parts[1]
	}
	q := domain.Question{
		ID:              r.ID,
		Domain:          domain.DomainMath,
		Dataset:         ds,
		Split:           split,
		Question:        r.Question,
		ReferenceAnswer: r.ReferenceAnswer,
	}
	return q, domain.Candidate{Answer: r.CorruptedAnswer}
}

// Injector builds corrupted variants from a seeded random stream, so
// the same input and seed always produce the same corruption sequence.
type Injector struct{ rng *rand.Rand }

// NewInjector creates an Injector seeded with seed.
func NewInjector(seed int64) *Injector {
	return &Injector{rng: rand.New(rand.NewSource(seed))}
}

// InjectVariants builds k corrupted variants of each numeric-answer
// question. Questions whose reference answer carries no number are
// skipped and counted. Variant ids append ::v<N> to the source id.
func (inj *Injector) InjectVariants(questions []domain.Question, k int) ([]InjectedRecord, int) {
	records := make([]InjectedRecord, 0, len(questions)*k)
	skipped := 0
	for _, q := range questions {
		y, ok := domain.LastNumber(q.ReferenceAnswer)
		if !ok {
			skipped++
			continue
		}
		for v := range k {
			bad, errType := inj.corrupt(y)
			records = append(records, InjectedRecord{
				ID:              fmt.Sprintf("%s::v%d", q.ID, v+1),
				Question:        q.Question,
				ReferenceAnswer: FormatNumber(y),
				CorruptedAnswer: FormatNumber(bad),
				ErrorInjected:   1,
				ErrorType:       errType,
			})
		}
	}
	return records, skipped
}

// corrupt applies one randomly chosen corruption to x and names it.
// The result always differs from x: a sign flip of zero would be a
// no-op, so it falls back to an off-by-one.
func (inj *Injector) corrupt(x float64) (float64, string) {
	var bad float64
	var errType string
	switch inj.rng.Intn(3) {
	case 0:
		if inj.rng.Intn(2) == 0 {
			bad = x + 1
		} else {
			bad = x - 1
		}
		errType = ErrorOffByOne
	case 1:
		bad = -x
		errType = ErrorSignFlip
	default:
		deltas := [...]float64{2, -2, 3, -3}
		bad = x + deltas[inj.rng.Intn(len(deltas))]
		errType = ErrorSmallPerturb
	}

	if bad == x {
		return x + 1, ErrorOffByOne
	}
	return bad, errType
}

// FormatNumber renders a number the way final answers are written:
// integers without a decimal point, everything else in minimal float
// form.
func FormatNumber(x float64) string {
	if x == math.Trunc(x) && math.Abs(x) < 1e15 {
		return strconv.FormatInt(int64(x), 10)
	}
	return strconv.FormatFloat(x, 'g', -1, 64)
}
