package pipeline

import "slices"

// Outcome is how an attempt ended.
type Outcome string

// Attempt outcomes.
const (
	// OutcomeGenerated marks an attempt whose code was produced but never
	// executed because the run was cancelled.
	OutcomeGenerated          Outcome = "generated"
	OutcomeGenerationFailed   Outcome = "generation_failed"
	OutcomeValidationFailed   Outcome = "validation_failed"
	OutcomeValidationRejected Outcome = "validation_rejected"
	OutcomeExecutionFailed    Outcome = "execution_failed"
	OutcomeSucceeded          Outcome = "succeeded"
)

// Attempt is a finished attempt.
type Attempt struct {
	Index   int     `json:"index"`
	Code    string  `json:"code"`
	Outcome Outcome `json:"outcome"`
}

// History is what generators see of earlier attempts.
type History struct {
	Attempts []Attempt     `json:"attempts"`
	Errors   []ErrorRecord `json:"errors"`
}

// LastError returns the most recent error record, if any.
func (h History) LastError() (ErrorRecord, bool) {
	if len(h.Errors) == 0 {
		return ErrorRecord{}, false
	}
	return h.Errors[len(h.Errors)-1], true
}

// history is append-only; readers get copies.
type history struct {
	attempts []Attempt
	errors   []ErrorRecord
}

func (h *history) addAttempt(a Attempt) {
	h.attempts = append(h.attempts, a)
}

func (h *history) addError(code, message string) {
	h.errors = append(h.errors, ErrorRecord{Code: code, Message: message})
}

func (h *history) snapshot() History {
	return History{
		Attempts: slices.Clone(h.attempts),
		Errors:   h.errorsCopy(),
	}
}

func (h *history) errorsCopy() []ErrorRecord {
	out := make([]ErrorRecord, len(h.errors))
	copy(out, h.errors)
	return out
}
