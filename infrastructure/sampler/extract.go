package sampler

import (
	"regexp"
	"strings"
)

// finalAnswerRe captures the text after a "Final:" marker up to the end
// of that line. Whitespace after the colon, including newlines, is
// consumed, so "Final:\n42" still yields "42".
var finalAnswerRe = regexp.MustCompile(`Final:\s*(.+)`)

// ExtractFinalAnswer pulls the final answer out of a chain-of-thought
// completion. The first "Final:" marker wins, matched case-sensitively.
// When no marker is present the last non-empty line is taken as the
// answer; an all-whitespace completion yields the empty string, which
// the correctness matcher treats as incorrect.
func ExtractFinalAnswer(cot string) string {
	if m := finalAnswerRe.FindStringSubmatch(cot); m != nil {
		return strings.TrimSpace(m[1])
	}

	lines := strings.Split(cot, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
