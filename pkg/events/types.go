package events

import "time"

// EventType identifies the kind of event emitted during a guard run.
type EventType string

const (
	EventRunStart             EventType = "guard.run.start"
	EventCaseResult           EventType = "guard.case.result"
	EventDeterminism          EventType = "guard.determinism"
	EventRunEnd               EventType = "guard.run.end"
	EventGeneratorResolved    EventType = "generator.resolved"
	EventGeneratorUnavailable EventType = "generator.unavailable"
	EventCatalogLoaded        EventType = "catalog.loaded"
)

// Event represents a single runtime event.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id,omitempty"`
	Data      any           `json:"data"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// NewEvent creates a new Event with the current timestamp.
func NewEvent(typ EventType, data any) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// CaseData is the payload of EventCaseResult.
type CaseData struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Failed []string `json:"failed,omitempty"`
}

// RunData is the payload of EventRunEnd.
type RunData struct {
	Pass  bool `json:"pass"`
	Cases int  `json:"cases"`
}
