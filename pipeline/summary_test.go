package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureSummary(t *testing.T) {
	tests := []struct {
		name  string
		done  DonePayload
		limit int
		want  string
	}{
		{
			name: "NoErrors",
			done: DonePayload{},
			want: "",
		},
		{
			name: "FirstLineOfLastError",
			done: DonePayload{Errors: []ErrorRecord{
				{Code: "a", Message: "Code generation error: first"},
				{Code: "b", Message: "Execution error: boom\nTraceback..."},
			}},
			limit: 300,
			want:  "Execution error: boom",
		},
		{
			name:  "TruncatedByRunes",
			done:  DonePayload{Errors: []ErrorRecord{{Message: "héllo wörld"}}},
			limit: 4,
			want:  "héll",
		},
		{
			name: "DefaultLimit",
			done: DonePayload{Errors: []ErrorRecord{{Message: strings.Repeat("x", 400)}}},
			want: strings.Repeat("x", DefaultSummaryLimit),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureSummary(tt.done, tt.limit))
		})
	}
}
