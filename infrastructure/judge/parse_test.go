package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/go-gvgap/internal/domain"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		wantLabel      domain.Label
		wantConfidence float64
		wantRationale  string
	}{
		{
			name:           "clean accept",
			text:           `{"label":"accept","confidence":0.92,"rationale":"matches the arithmetic"}`,
			wantLabel:      domain.LabelAccept,
			wantConfidence: 0.92,
			wantRationale:  "matches the arithmetic",
		},
		{
			name:           "clean reject",
			text:           `{"label":"reject","confidence":0.75,"rationale":"off by one"}`,
			wantLabel:      domain.LabelReject,
			wantConfidence: 0.75,
			wantRationale:  "off by one",
		},
		{
			name:           "label normalized",
			text:           `{"label":"  Accept ","confidence":0.5,"rationale":"ok"}`,
			wantLabel:      domain.LabelAccept,
			wantConfidence: 0.5,
			wantRationale:  "ok",
		},
		{
			name:           "confidence clamped high",
			text:           `{"label":"accept","confidence":1.7,"rationale":"sure"}`,
			wantLabel:      domain.LabelAccept,
			wantConfidence: 1.0,
			wantRationale:  "sure",
		},
		{
			name:           "confidence clamped low",
			text:           `{"label":"reject","confidence":-0.5,"rationale":"unsure"}`,
			wantLabel:      domain.LabelReject,
			wantConfidence: 0.0,
			wantRationale:  "unsure",
		},
		{
			name:           "missing confidence defaults to zero",
			text:           `{"label":"accept","rationale":"no confidence given"}`,
			wantLabel:      domain.LabelAccept,
			wantConfidence: 0.0,
			wantRationale:  "no confidence given",
		},
		{
			name:           "json fenced block",
			text:           "```json\n{\"label\":\"accept\",\"confidence\":0.8,\"rationale\":\"fine\"}\n```",
			wantLabel:      domain.LabelAccept,
			wantConfidence: 0.8,
			wantRationale:  "fine",
		},
		{
			name:           "generic fenced block",
			text:           "Here you go:\n```\n{\"label\":\"reject\",\"confidence\":0.6,\"rationale\":\"wrong sign\"}\n```",
			wantLabel:      domain.LabelReject,
			wantConfidence: 0.6,
			wantRationale:  "wrong sign",
		},
		{
			name:           "surrounding prose",
			text:           `Sure! My verdict is {"label":"accept","confidence":0.9,"rationale":"checks out"} as requested.`,
			wantLabel:      domain.LabelAccept,
			wantConfidence: 0.9,
			wantRationale:  "checks out",
		},
		{
			name:           "braces inside rationale",
			text:           `{"label":"reject","confidence":0.4,"rationale":"expected {4} but got {5}"}`,
			wantLabel:      domain.LabelReject,
			wantConfidence: 0.4,
			wantRationale:  "expected {4} but got {5}",
		},
		{
			name:           "escaped quote inside rationale",
			text:           `{"label":"accept","confidence":0.7,"rationale":"says \"four\" which is right"}`,
			wantLabel:      domain.LabelAccept,
			wantConfidence: 0.7,
			wantRationale:  `says "four" which is right`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := parseVerdict(tt.text)
			assert.Equal(t, tt.wantLabel, v.Label)
			assert.InDelta(t, tt.wantConfidence, v.Confidence, 1e-9)
			assert.Equal(t, tt.wantRationale, v.Rationale)
		})
	}
}

func TestParseVerdict_DegradesToRejection(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty response", ""},
		{"no json at all", "I think the answer is correct."},
		{"unbalanced braces", `{"label":"accept","confidence":0.9`},
		{"malformed json", `{"label":"accept",}`},
		{"invalid label", `{"label":"maybe","confidence":0.5,"rationale":"hmm"}`},
		{"wrong value type", `{"label":"accept","confidence":"high","rationale":"ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := parseVerdict(tt.text)
			assert.Equal(t, domain.LabelReject, v.Label)
			assert.Zero(t, v.Confidence)
			assert.Contains(t, v.Rationale, "invalid JSON:")
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "bare object",
			response: `{"a":1}`,
			want:     `{"a":1}`,
		},
		{
			name:     "nested object captured whole",
			response: `result: {"a":{"b":2},"c":3} done`,
			want:     `{"a":{"b":2},"c":3}`,
		},
		{
			name:     "json fence",
			response: "```json\n{\"a\":1}\n```",
			want:     `{"a":1}`,
		},
		{
			name:     "fence with language line",
			response: "```javascript\n{\"a\":1}\n```",
			want:     `{"a":1}`,
		},
		{
			name:     "no braces",
			response: "nothing here",
			want:     "",
		},
		{
			name:     "never closed",
			response: `{"a":1`,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.response))
		})
	}
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-2))
	assert.Equal(t, 0.5, clamp01(0.5))
	assert.Equal(t, 1.0, clamp01(3))
	assert.Equal(t, 0.0, clamp01(0))
	assert.Equal(t, 1.0, clamp01(1))
}
