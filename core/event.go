package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind distinguishes spoken output from telemetry.
type EventKind int

const (
	// EventSpeak is handed to the TTS collaborator as plain text.
	EventSpeak EventKind = iota

	// EventLog is handed to the logging/telemetry collaborator.
	EventLog
)

func (k EventKind) String() string {
	if k == EventSpeak {
		return "speak"
	}
	return "log"
}

// Event is an immutable user-facing action produced by the rules engine.
// Events are dispatched immediately and never stored.
type Event struct {
	ID   string    `json:"id"`
	Kind EventKind `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// NewEvent builds an event with a fresh ID.
func NewEvent(kind EventKind, text string, at time.Time) Event {
	return Event{
		ID:   uuid.New().String(),
		Kind: kind,
		Text: text,
		At:   at,
	}
}

// Speak is shorthand for a SPEAK event.
func Speak(text string, at time.Time) Event {
	return NewEvent(EventSpeak, text, at)
}

// Log is shorthand for a LOG event.
func Log(text string, at time.Time) Event {
	return NewEvent(EventLog, text, at)
}
