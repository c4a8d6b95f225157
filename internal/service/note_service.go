package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/notes-service/internal/auth"
	"github.com/spec-kit/notes-service/internal/domain"
	"github.com/spec-kit/notes-service/internal/events"
	"github.com/spec-kit/notes-service/internal/repository"
	apperrors "github.com/spec-kit/notes-service/pkg/util/errorutil"
)

// maxMutationAttempts bounds how often a mutation is replayed after losing a version race.
const maxMutationAttempts = 5

// NoteService manages notes and their checklists. Every operation is scoped to the caller.
type NoteService struct {
	notes      repository.NoteRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NoteDependencies encapsulates requirements for the note service.
type NoteDependencies struct {
	NoteRepo   repository.NoteRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NoteInput is the payload for creating a note.
type NoteInput struct {
	Title       string
	Content     map[string]any
	ContentHTML string
	Tags        []string
	Reminder    *time.Time
	TodoItems   []domain.TodoItem
	IsPinned    bool
	IsArchived  bool
	Color       string
}

// NotePatch carries the fields to change; nil means leave as is.
type NotePatch struct {
	Title         *string
	Content       map[string]any
	ContentHTML   *string
	Tags          *[]string
	Reminder      *time.Time
	ClearReminder bool
	TodoItems     *[]domain.TodoItem
	IsPinned      *bool
	IsArchived    *bool
	Color         *string
}

// NoteListFilter mirrors the listing query parameters.
type NoteListFilter struct {
	Tag         string
	Search      string
	HasReminder bool
	IsPinned    *bool
	IsArchived  *bool
}

// TodoInput is the payload for adding a checklist item. A nil Position appends.
type TodoInput struct {
	Text      string
	Completed bool
	Position  *int
}

// TodoPatch carries the checklist fields to change.
type TodoPatch struct {
	Text      *string
	Completed *bool
	Position  *int
}

// NoteText is the plain-text rendering of a note.
type NoteText struct {
	NoteID      string
	Title       string
	TextContent string
}

// NewNoteService builds the service.
func NewNoteService(deps NoteDependencies) *NoteService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoteService{
		notes:      deps.NoteRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// Create stores a new note owned by the caller.
func (s *NoteService) Create(ctx context.Context, identity *auth.Identity, input NoteInput) (*domain.Note, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"title": "required"})
	}

	note := &domain.Note{
		UserID:      identity.ID,
		Title:       title,
		Content:     input.Content,
		ContentHTML: input.ContentHTML,
		Tags:        input.Tags,
		Reminder:    input.Reminder,
		TodoItems:   withTodoIDs(input.TodoItems),
		IsPinned:    input.IsPinned,
		IsArchived:  input.IsArchived,
		Color:       input.Color,
	}
	if note.Content == nil {
		note.Content = domain.EmptyContent()
	}
	if note.Tags == nil {
		note.Tags = []string{}
	}
	if note.Color == "" {
		note.Color = domain.DefaultNoteColor
	}

	if err := s.notes.Create(ctx, note); err != nil {
		return nil, err
	}
	s.publishNoteEvent(ctx, events.EventNoteCreated, note)
	return note, nil
}

// List returns the caller's notes. Archived notes are hidden unless IsArchived is set.
func (s *NoteService) List(ctx context.Context, identity *auth.Identity, filter NoteListFilter) ([]domain.Note, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	repoFilter := repository.NoteFilter{
		UserID:      identity.ID,
		Tag:         strings.TrimSpace(filter.Tag),
		Search:      filter.Search,
		HasReminder: filter.HasReminder,
		IsPinned:    filter.IsPinned,
		IsArchived:  filter.IsArchived,
	}
	if repoFilter.IsArchived == nil {
		notArchived := false
		repoFilter.IsArchived = &notArchived
	}
	notes, err := s.notes.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []domain.Note{}
	}
	return notes, nil
}

// Get returns one of the caller's notes.
func (s *NoteService) Get(ctx context.Context, identity *auth.Identity, noteID string) (*domain.Note, error) {
	return s.loadOwned(ctx, identity, noteID)
}

// Update applies patch to one of the caller's notes.
func (s *NoteService) Update(ctx context.Context, identity *auth.Identity, noteID string, patch NotePatch) (*domain.Note, error) {
	var title string
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
	}
	note, err := s.mutate(ctx, identity, noteID, func(note *domain.Note) error {
		if patch.Title != nil {
			if title == "" {
				return apperrors.NewValidationError("title is required", map[string]any{"title": "required"})
			}
			note.Title = title
		}
		if patch.Content != nil {
			note.Content = patch.Content
		}
		if patch.ContentHTML != nil {
			note.ContentHTML = *patch.ContentHTML
		}
		if patch.Tags != nil {
			note.Tags = *patch.Tags
		}
		if patch.ClearReminder {
			note.Reminder = nil
		} else if patch.Reminder != nil {
			note.Reminder = patch.Reminder
		}
		if patch.TodoItems != nil {
			note.TodoItems = withTodoIDs(*patch.TodoItems)
		}
		if patch.IsPinned != nil {
			note.IsPinned = *patch.IsPinned
		}
		if patch.IsArchived != nil {
			note.IsArchived = *patch.IsArchived
		}
		if patch.Color != nil {
			note.Color = *patch.Color
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishNoteEvent(ctx, events.EventNoteUpdated, note)
	return note, nil
}

// Delete removes one of the caller's notes.
func (s *NoteService) Delete(ctx context.Context, identity *auth.Identity, noteID string) error {
	note, err := s.loadOwned(ctx, identity, noteID)
	if err != nil {
		return err
	}
	if err := s.notes.Delete(ctx, note.UserID, note.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("note", nil)
		}
		return err
	}
	s.publishNoteEvent(ctx, events.EventNoteDeleted, note)
	return nil
}

// Tags returns the caller's tags, most used first.
func (s *NoteService) Tags(ctx context.Context, identity *auth.Identity) ([]domain.TagCount, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return s.notes.TagCounts(ctx, identity.ID)
}

// TextContent renders one of the caller's notes as plain text.
func (s *NoteService) TextContent(ctx context.Context, identity *auth.Identity, noteID string) (*NoteText, error) {
	note, err := s.loadOwned(ctx, identity, noteID)
	if err != nil {
		return nil, err
	}
	return &NoteText{NoteID: note.ID, Title: note.Title, TextContent: note.PlainText()}, nil
}

// AddTodo appends a checklist item to one of the caller's notes.
func (s *NoteService) AddTodo(ctx context.Context, identity *auth.Identity, noteID string, input TodoInput) (*domain.TodoItem, error) {
	text := strings.TrimSpace(input.Text)
	itemID := uuid.NewString()
	var item domain.TodoItem
	note, err := s.mutate(ctx, identity, noteID, func(note *domain.Note) error {
		if text == "" {
			return apperrors.NewValidationError("text is required", map[string]any{"text": "required"})
		}
		item = domain.TodoItem{
			ID:        itemID,
			Text:      text,
			Completed: input.Completed,
			Position:  len(note.TodoItems),
		}
		if input.Position != nil {
			item.Position = *input.Position
		}
		note.TodoItems = append(note.TodoItems, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishNoteEvent(ctx, events.EventNoteUpdated, note)
	return &item, nil
}

// UpdateTodo changes a checklist item on one of the caller's notes.
func (s *NoteService) UpdateTodo(ctx context.Context, identity *auth.Identity, noteID, todoID string, patch TodoPatch) (*domain.TodoItem, error) {
	var updated domain.TodoItem
	note, err := s.mutate(ctx, identity, noteID, func(note *domain.Note) error {
		idx := note.TodoIndex(todoID)
		if idx < 0 {
			return apperrors.NewNotFound("todo item", nil)
		}
		item := &note.TodoItems[idx]
		if patch.Text != nil {
			text := strings.TrimSpace(*patch.Text)
			if text == "" {
				return apperrors.NewValidationError("text is required", map[string]any{"text": "required"})
			}
			item.Text = text
		}
		if patch.Completed != nil {
			item.Completed = *patch.Completed
		}
		if patch.Position != nil {
			item.Position = *patch.Position
		}
		updated = *item
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishNoteEvent(ctx, events.EventNoteUpdated, note)
	return &updated, nil
}

// DeleteTodo removes a checklist item from one of the caller's notes.
func (s *NoteService) DeleteTodo(ctx context.Context, identity *auth.Identity, noteID, todoID string) error {
	note, err := s.mutate(ctx, identity, noteID, func(note *domain.Note) error {
		idx := note.TodoIndex(todoID)
		if idx < 0 {
			return apperrors.NewNotFound("todo item", nil)
		}
		note.TodoItems = append(note.TodoItems[:idx], note.TodoItems[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.publishNoteEvent(ctx, events.EventNoteUpdated, note)
	return nil
}

// mutate loads the caller's note, applies change and stores it under the loaded
// version. A concurrent write makes the store report a conflict, and the cycle is
// replayed on the fresh record so no change is lost.
func (s *NoteService) mutate(ctx context.Context, identity *auth.Identity, noteID string, change func(*domain.Note) error) (*domain.Note, error) {
	for attempt := 1; attempt <= maxMutationAttempts; attempt++ {
		note, err := s.loadOwned(ctx, identity, noteID)
		if err != nil {
			return nil, err
		}
		if err := change(note); err != nil {
			return nil, err
		}

		err = s.notes.Update(ctx, note)
		switch {
		case err == nil:
			return note, nil
		case errors.Is(err, repository.ErrConflict):
			s.logger.Debug("note changed concurrently, retrying",
				zap.String("note_id", noteID), zap.Int("attempt", attempt))
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NewNotFound("note", nil)
		default:
			return nil, err
		}
	}
	return nil, apperrors.NewConflict("note was modified concurrently, try again")
}

func (s *NoteService) loadOwned(ctx context.Context, identity *auth.Identity, noteID string) (*domain.Note, error) {
	return auth.LoadOwned(ctx, identity, func(ctx context.Context) (*domain.Note, error) {
		note, err := s.notes.GetByID(ctx, noteID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("note", nil)
		}
		return note, err
	}, noteOwner)
}

func (s *NoteService) publishNoteEvent(ctx context.Context, eventType events.EventType, note *domain.Note) {
	event := events.NewEvent(eventType, note.UserID, events.NotePayload{Title: note.Title, Tags: note.Tags})
	event.NoteID = note.ID
	publish(ctx, s.dispatcher, event)
}

func noteOwner(note *domain.Note) string {
	return note.UserID
}

func withTodoIDs(items []domain.TodoItem) []domain.TodoItem {
	out := make([]domain.TodoItem, len(items))
	for i, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		out[i] = item
	}
	return out
}
