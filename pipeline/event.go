package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/bagofwords1/bagofwords-sub001/table"
)

// EventType identifies the kind of event.
type EventType string

// Event types.
const (
	EventProgress EventType = "progress"
	EventStdout   EventType = "stdout"
	EventDone     EventType = "done"
)

// Stage is a progress stage label.
type Stage string

// Progress stages.
const (
	StageGenerating      Stage = "generating_code"
	StageGenerated       Stage = "generated_code"
	StageRetry           Stage = "retry"
	StageValidating      Stage = "validating_code"
	StageValidatingRetry Stage = "validating_code.retry"
	StageValidated       Stage = "validated_code"
	StageExecuting       Stage = "executing_code"
)

// Event is a single pipeline notification. Payload is a ProgressPayload, a
// string for stdout events, or a DonePayload.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// ProgressPayload reports the current stage and attempt.
type ProgressPayload struct {
	Stage   Stage  `json:"stage"`
	Attempt int    `json:"attempt"`
	Valid   *bool  `json:"valid,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorRecord pairs the code that was current when a failure happened with
// the failure message. It serializes as a two-element array.
type ErrorRecord struct {
	Code    string
	Message string
}

func (r ErrorRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{r.Code, r.Message})
}

func (r *ErrorRecord) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("error record must have 2 elements, got %d", len(pair))
	}
	r.Code, r.Message = pair[0], pair[1]
	return nil
}

// DonePayload is the terminal result of a run. Table is nil when the budget
// was exhausted without success and empty when the run was cancelled.
type DonePayload struct {
	Table        *table.Table  `json:"table"`
	Code         string        `json:"code"`
	Errors       []ErrorRecord `json:"errors"`
	ExecutionLog string        `json:"execution_log"`
}

// Succeeded reports whether the run produced a table.
func (d DonePayload) Succeeded() bool {
	return d.Table != nil
}

// Sink receives events in order.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) {
	f(e)
}

func progressEvent(stage Stage, attempt int) Event {
	return Event{Type: EventProgress, Payload: ProgressPayload{Stage: stage, Attempt: attempt}}
}

func validatedEvent(attempt int, valid bool, reasoning string) Event {
	return Event{Type: EventProgress, Payload: ProgressPayload{
		Stage:   StageValidated,
		Attempt: attempt,
		Valid:   &valid,
		Error:   reasoning,
	}}
}

func stdoutEvent(msg string) Event {
	return Event{Type: EventStdout, Payload: msg}
}
