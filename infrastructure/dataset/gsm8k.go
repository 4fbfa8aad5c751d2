// Package dataset converts raw benchmark problems into pipeline
// question records and builds corrupted answer variants for judge
// stress tests.
package dataset

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-gvgap/internal/domain"
)

// Shared validator instance to reduce allocations.
var datasetValidator = validator.New()

// DatasetGSM8K names the GSM8K benchmark in ids and question records.
const DatasetGSM8K = "gsm8k"

// AnswerDelimiter separates the worked reasoning from the final answer
// in raw GSM8K answer text.
const AnswerDelimiter = "####"

// RawProblem is one record of a raw problem set: the question text and
// an answer blob. For GSM8K the blob carries worked reasoning plus
// "#### <final>"; generic sets put the reference answer there directly.
type RawProblem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// LoadRawProblems reads a JSON array of raw problems from path.
func LoadRawProblems(path string) ([]RawProblem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw problems: %w", err)
	}
	var problems []RawProblem
	if err := json.Unmarshal(data, &problems); err != nil {
		return nil, fmt.Errorf("parse raw problems %s: %w", path, err)
	}
	return problems, nil
}

// SplitAnswer separates a raw GSM8K answer blob into the gold chain of
// thought and the final answer. The final answer follows the last
// delimiter, the reasoning precedes the first. ok is false when the
// blob has no delimiter or nothing after it, meaning no extractable
// answer.
func SplitAnswer(answer string) (goldCoT, finalAnswer string, ok bool) {
	first := strings.Index(answer, AnswerDelimiter)
	if first == -1 {
		return "", "", false
	}
	last := strings.LastIndex(answer, AnswerDelimiter)
	goldCoT = strings.TrimSpace(answer[:first])
	finalAnswer = strings.TrimSpace(answer[last+len(AnswerDelimiter):])
	if finalAnswer == "" {
		return "", "", false
	}
	return goldCoT, finalAnswer, true
}

// PrepareGSM8K converts raw GSM8K problems into math question records
// for the given split. Problems without an extractable final answer are
// skipped and counted. IDs use the raw input position, so re-preparing
// the same input yields stable ids even when some records are skipped.
func PrepareGSM8K(problems []RawProblem, split string, metadata map[string]string) ([]domain.Question, int) {
	questions := make([]domain.Question, 0, len(problems))
	skipped := 0
	for i, p := range problems {
		question := strings.TrimSpace(p.Question)
		goldCoT, finalAnswer, ok := SplitAnswer(p.Answer)
		if !ok || question == "" {
			skipped++
			continue
		}
		questions = append(questions, domain.Question{
			ID:              fmt.Sprintf("%s/%s/%d", DatasetGSM8K, split, i),
			Domain:          domain.DomainMath,
			Dataset:         DatasetGSM8K,
			Split:           split,
			Question:        question,
			ReferenceAnswer: finalAnswer,
			GoldCoT:         goldCoT,
			Metadata:        maps.Clone(metadata),
		})
	}
	return questions, skipped
}

// PrepareGeneric converts raw question/answer records of any domain
// into question records, taking the answer text directly as the
// reference. Records missing either field are skipped and counted.
func PrepareGeneric(problems []RawProblem, dataset string, d domain.Domain, split string, metadata map[string]string) ([]domain.Question, int) {
	questions := make([]domain.Question, 0, len(problems))
	skipped := 0
	for i, p := range problems {
		question := strings.TrimSpace(p.Question)
		reference := strings.TrimSpace(p.Answer)
		if question == "" || reference == "" {
			skipped++
			continue
		}
		questions = append(questions, domain.Question{
			ID:              fmt.Sprintf("%s/%s/%d", dataset, split, i),
			Domain:          d,
			Dataset:         dataset,
			Split:           split,
			Question:        question,
			ReferenceAnswer: reference,
			Metadata:        maps.Clone(metadata),
		})
	}
	return questions, skipped
}

// PilotSample returns the embedded three-problem GSM8K sample, enough
// to exercise the full pipeline without downloading anything.
func PilotSample() []RawProblem {
	return []RawProblem{
		{
			Question: "Natalia sold clips to 48 of her friends in April, and then she sold half as many clips in May. How many clips did Natalia sell altogether in April and May?",
			Answer:   "Natalia sold 48/2 = 24 clips in May.\nNatalia sold 48+24 = 72 clips altogether in April and May.\n#### 72",
		},
		{
			Question: "Weng earns $12 an hour for babysitting. Yesterday, she just did 50 minutes of babysitting. How much did she earn?",
			Answer:   "Weng earns 12/60 = $0.2 per minute.\nWorking 50 minutes, she earned 0.2 x 50 = $10.\n#### 10",
		},
		{
			Question: "Betty is saving money for a new wallet which costs $100. Betty has only half of the money she needs. Her parents decided to give her $15 for that purpose, and her grandparents twice as much as her parents. How much more money does Betty need to buy the wallet?",
			Answer:   "In the beginning, Betty has only 100/2 = $50.\nBetty's grandparents gave her 15 * 2 = $30.\nThis means, Betty needs 100 - 50 - 15 - 30 = $5 more.\n#### 5",
		},
	}
}
