package pipeline

import "strings"

// DefaultSummaryLimit is the rune limit used by FailureSummary when given a
// non-positive limit.
const DefaultSummaryLimit = 300

// FailureSummary returns the first line of the last recorded error,
// truncated to limit runes. It is empty when no errors were recorded.
func FailureSummary(done DonePayload, limit int) string {
	if len(done.Errors) == 0 {
		return ""
	}
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}
	line, _, _ := strings.Cut(done.Errors[len(done.Errors)-1].Message, "\n")
	runes := []rune(line)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return line
}
