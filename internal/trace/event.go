package trace

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of trace event
type EventType string

const (
	// EventTypeRunStart indicates a run started, after mode selection
	EventTypeRunStart EventType = "run_start"

	// EventTypeRunComplete indicates the run finished and was finalized
	EventTypeRunComplete EventType = "run_complete"

	// EventTypeStepStart indicates a step started
	EventTypeStepStart EventType = "step_start"

	// EventTypeStepComplete indicates a step passed
	EventTypeStepComplete EventType = "step_complete"

	// EventTypeStepFail indicates a step failed
	EventTypeStepFail EventType = "step_fail"

	// EventTypeInterrupt indicates the operator cancelled the run
	EventTypeInterrupt EventType = "interrupt"

	// EventTypeCleanup indicates teardown ran
	EventTypeCleanup EventType = "cleanup"

	// EventTypeError indicates an error outside any step
	EventTypeError EventType = "error"
)

// Event represents a single trace event
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	StepID    string         `json:"step_id,omitempty"`
	Message   string         `json:"message"`
	Level     string         `json:"level"`
	Data      map[string]any `json:"data,omitempty"`
	// Duration tracks how long an operation took (for start/complete pairs)
	Duration *time.Duration `json:"duration,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// ToJSON converts the event to a single JSON line
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// NewEvent creates a new trace event with common fields populated
func NewEvent(eventType EventType, runID string, message string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
		Message:   message,
		Level:     inferLevel(eventType),
	}
}

// WithStepID sets the step ID
func (e *Event) WithStepID(stepID string) *Event {
	e.StepID = stepID
	return e
}

// WithData adds data to the event
func (e *Event) WithData(key string, value any) *Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// WithError sets the error field
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Error = err.Error()
		e.Level = "error"
	}
	return e
}

// WithDuration sets the duration
func (e *Event) WithDuration(duration time.Duration) *Event {
	e.Duration = &duration
	return e
}

// inferLevel infers the log level from event type
func inferLevel(eventType EventType) string {
	switch eventType {
	case EventTypeError, EventTypeStepFail:
		return "error"
	case EventTypeInterrupt:
		return "warning"
	default:
		return "info"
	}
}
