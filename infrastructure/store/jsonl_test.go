package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gvgap/internal/domain"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadRecords_SkipsAndCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.jsonl")
	writeTestFile(t, path, strings.Join([]string{
		`{"id":"gsm8k/pilot/0","domain":"math","dataset":"gsm8k","split":"pilot","question":"2+2?","reference_answer":"4"}`,
		`not json at all`,
		``,
		`{"id":"","domain":"math","dataset":"gsm8k","split":"pilot","question":"q","reference_answer":"a"}`,
		`{"id":"gsm8k/pilot/1","domain":"math","dataset":"gsm8k","split":"pilot","question":"3+3?","reference_answer":"6"}`,
	}, "\n"))

	records, stats, err := ReadRecords(path, (*domain.Question).Validate)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "gsm8k/pilot/0", records[0].ID)
	assert.Equal(t, "gsm8k/pilot/1", records[1].ID)

	assert.Equal(t, 2, stats.Read)
	assert.Equal(t, 2, stats.Skipped, "bad JSON and failed validation both count as skips")
}

func TestReadRecords_WithoutValidator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.jsonl")
	writeTestFile(t, path, strings.Join([]string{
		`{"id":"","domain":"math","dataset":"gsm8k","split":"pilot","question":"q","reference_answer":"a"}`,
		`{broken`,
	}, "\n"))

	records, stats, err := ReadRecords[domain.Question](path, nil)
	require.NoError(t, err)

	assert.Len(t, records, 1, "without a validator only JSON errors skip")
	assert.Equal(t, 1, stats.Read)
	assert.Equal(t, 1, stats.Skipped)
}

func TestReadRecords_MissingFile(t *testing.T) {
	_, _, err := ReadRecords[domain.Question](filepath.Join(t.TempDir(), "absent.jsonl"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}

func TestReadRecords_LongLines(t *testing.T) {
	type cotRecord struct {
		Text string `json:"text"`
	}

	// Chain-of-thought lines exceed the scanner's 64KiB default.
	path := filepath.Join(t.TempDir(), "long.jsonl")
	writeTestFile(t, path, fmt.Sprintf(`{"text":%q}`, strings.Repeat("step ", 40_000)))

	records, stats, err := ReadRecords[cotRecord](path, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, stats.Read)
	assert.Len(t, records[0].Text, 200_000)
}

func TestWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.jsonl")

	w, err := NewWriter(path)
	require.NoError(t, err, "writer should create parent directories")

	questions := []domain.Question{
		{ID: "gsm8k/pilot/0", Domain: domain.DomainMath, Dataset: "gsm8k", Split: "pilot", Question: "2+2?", ReferenceAnswer: "4"},
		{ID: "gsm8k/pilot/1", Domain: domain.DomainMath, Dataset: "gsm8k", Split: "pilot", Question: "3+3?", ReferenceAnswer: "6"},
	}
	for i := range questions {
		require.NoError(t, w.Write(&questions[i]))
	}
	assert.Equal(t, 2, w.Count())
	require.NoError(t, w.Close())

	got, stats, err := ReadRecords(path, (*domain.Question).Validate)
	require.NoError(t, err)
	assert.Equal(t, questions, got)
	assert.Equal(t, ReadStats{Read: 2}, stats)
}

func TestWriteRecords_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")

	questions := []domain.Question{
		{ID: "mbpp/pilot/0", Domain: domain.DomainCode, Dataset: "mbpp", Split: "pilot", Question: "reverse a string", ReferenceAnswer: "s[::-1]"},
	}
	require.NoError(t, WriteRecords(path, questions))

	got, _, err := ReadRecords(path, (*domain.Question).Validate)
	require.NoError(t, err)
	assert.Equal(t, questions, got)
}

func TestWriteRecords_TruncatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")

	first := []domain.Question{
		{ID: "gsm8k/pilot/0", Domain: domain.DomainMath, Dataset: "gsm8k", Split: "pilot", Question: "2+2?", ReferenceAnswer: "4"},
		{ID: "gsm8k/pilot/1", Domain: domain.DomainMath, Dataset: "gsm8k", Split: "pilot", Question: "3+3?", ReferenceAnswer: "6"},
	}
	require.NoError(t, WriteRecords(path, first))

	second := first[:1]
	require.NoError(t, WriteRecords(path, second))

	got, _, err := ReadRecords[domain.Question](path, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1, "rewriting a stage file should replace its contents")
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "summary.json")

	require.NoError(t, WriteJSON(path, map[string]int{"total": 40}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(content), "\n"), "document should end with a newline")
	assert.Contains(t, string(content), `"total": 40`)
}
