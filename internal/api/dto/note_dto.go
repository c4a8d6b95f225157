package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/spec-kit/notes-service/internal/domain"
)

// TodoItemRequest payload for checklist items.
type TodoItemRequest struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
	Position  *int    `json:"position"`
}

// CreateNoteRequest payload.
type CreateNoteRequest struct {
	Title       string            `json:"title"`
	Content     map[string]any    `json:"content"`
	ContentHTML string            `json:"contentHtml"`
	Tags        []string          `json:"tags"`
	Reminder    *time.Time        `json:"reminder"`
	TodoItems   []domain.TodoItem `json:"todoItems"`
	IsPinned    bool              `json:"isPinned"`
	IsArchived  bool              `json:"isArchived"`
	Color       string            `json:"color"`
}

// UpdateNoteRequest payload; absent fields are left unchanged.
type UpdateNoteRequest struct {
	Title       *string            `json:"title"`
	Content     map[string]any     `json:"content"`
	ContentHTML *string            `json:"contentHtml"`
	Tags        *[]string          `json:"tags"`
	Reminder    json.RawMessage    `json:"reminder"`
	TodoItems   *[]domain.TodoItem `json:"todoItems"`
	IsPinned    *bool              `json:"isPinned"`
	IsArchived  *bool              `json:"isArchived"`
	Color       *string            `json:"color"`
}

// ReminderChange reports whether the reminder was sent, and its new value (nil clears it).
func (r UpdateNoteRequest) ReminderChange() (bool, *time.Time, error) {
	raw := bytes.TrimSpace(r.Reminder)
	if len(raw) == 0 {
		return false, nil, nil
	}
	if bytes.Equal(raw, []byte("null")) {
		return true, nil, nil
	}
	var at time.Time
	if err := json.Unmarshal(raw, &at); err != nil {
		return false, nil, err
	}
	return true, &at, nil
}

// NoteResponse is the public view of a note.
type NoteResponse struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Title       string            `json:"title"`
	Content     map[string]any    `json:"content"`
	ContentHTML string            `json:"contentHtml"`
	Tags        []string          `json:"tags"`
	Reminder    *time.Time        `json:"reminder"`
	TodoItems   []domain.TodoItem `json:"todoItems"`
	IsPinned    bool              `json:"isPinned"`
	IsArchived  bool              `json:"isArchived"`
	Color       string            `json:"color"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// NewNoteResponse maps a note.
func NewNoteResponse(note *domain.Note) NoteResponse {
	resp := NoteResponse{
		ID:          note.ID,
		UserID:      note.UserID,
		Title:       note.Title,
		Content:     note.Content,
		ContentHTML: note.ContentHTML,
		Tags:        note.Tags,
		Reminder:    note.Reminder,
		TodoItems:   note.TodoItems,
		IsPinned:    note.IsPinned,
		IsArchived:  note.IsArchived,
		Color:       note.Color,
		CreatedAt:   note.CreatedAt,
		UpdatedAt:   note.UpdatedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if resp.TodoItems == nil {
		resp.TodoItems = []domain.TodoItem{}
	}
	return resp
}

// NewNoteResponses maps a list of notes.
func NewNoteResponses(notes []domain.Note) []NoteResponse {
	out := make([]NoteResponse, 0, len(notes))
	for i := range notes {
		out = append(out, NewNoteResponse(&notes[i]))
	}
	return out
}
