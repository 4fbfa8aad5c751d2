package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ahrav/go-gvgap/internal/domain"
)

// judgeResponse is the JSON shape the judge model is instructed to
// return.
type judgeResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// parseVerdict turns a raw judge response into a verdict. Parse
// failures never error: an unparseable response becomes a
// zero-confidence rejection with the failure recorded in the rationale,
// so judge misbehavior stays visible in the output instead of killing
// the run.
func parseVerdict(text string) domain.CandidateVerdict {
	verdict, err := decodeVerdict(text)
	if err != nil {
		return domain.CandidateVerdict{
			Label:      domain.LabelReject,
			Confidence: 0,
			Rationale:  fmt.Sprintf("invalid JSON: %v", err),
		}
	}
	return verdict
}

func decodeVerdict(text string) (domain.CandidateVerdict, error) {
	jsonStr := extractJSON(text)
	if jsonStr == "" {
		return domain.CandidateVerdict{}, errors.New("no JSON object in response")
	}

	var resp judgeResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return domain.CandidateVerdict{}, err
	}

	label := domain.Label(strings.ToLower(strings.TrimSpace(resp.Label)))
	if label != domain.LabelAccept && label != domain.LabelReject {
		return domain.CandidateVerdict{}, fmt.Errorf("invalid label: %q", resp.Label)
	}

	return domain.CandidateVerdict{
		Label:      label,
		Confidence: clamp01(resp.Confidence),
		Rationale:  resp.Rationale,
	}, nil
}

// extractJSON pulls the first JSON object out of a response that may
// wrap it in markdown fences or surrounding prose. Returns "" when no
// balanced object is found.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	// Fenced ```json blocks are the most common wrapper.
	if idx := strings.Index(response, "```json"); idx != -1 {
		body := response[idx+len("```json"):]
		if end := strings.Index(body, "```"); end != -1 {
			return strings.TrimSpace(body[:end])
		}
	}

	// Generic fences may carry a language identifier on the first line.
	if idx := strings.Index(response, "```"); idx != -1 {
		body := response[idx+3:]
		if nl := strings.Index(body, "\n"); nl != -1 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end != -1 {
			if candidate := strings.TrimSpace(body[:end]); strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	// Otherwise scan for the first balanced object, tracking string
	// boundaries so braces inside rationale text do not confuse the
	// depth count.
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

// clamp01 bounds a judge-reported confidence to [0, 1]. Out-of-range
// values are tolerated rather than treated as parse failures.
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
