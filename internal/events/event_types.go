package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/notes-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered   EventType = "user_registered"
	EventUserLoggedIn     EventType = "user_logged_in"
	EventUserLoggedOut    EventType = "user_logged_out"
	EventSessionRefreshed EventType = "session_refreshed"
	EventNoteCreated      EventType = "note_created"
	EventNoteUpdated      EventType = "note_updated"
	EventNoteDeleted      EventType = "note_deleted"
)

// AllEventTypes lists every type a relay subscribes to.
var AllEventTypes = []EventType{
	EventUserRegistered,
	EventUserLoggedIn,
	EventUserLoggedOut,
	EventSessionRefreshed,
	EventNoteCreated,
	EventNoteUpdated,
	EventNoteDeleted,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	NoteID    string      `json:"note_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, userID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// UserPayload accompanies user lifecycle events.
type UserPayload struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

// NotePayload accompanies note events.
type NotePayload struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}
