package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/notes-service/internal/domain"
)

var (
	// ErrNotFound is returned when no record matches, including malformed ids.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field (the username) is taken.
	ErrDuplicate = errors.New("record already exists")
	// ErrConflict is returned when an update was based on a stale version of the record.
	ErrConflict = errors.New("record was modified concurrently")
)

// UserRepository is the credential store. Password hashing happens before Create.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Ping(ctx context.Context) error
}

// NoteFilter narrows a listing to one owner's notes.
type NoteFilter struct {
	UserID      string
	Tag         string
	Search      string
	HasReminder bool
	IsPinned    *bool
	IsArchived  *bool
}

// NoteRepository persists notes. Update and Delete match on both id and owner.
// Update also matches on note.Version: a stale version yields ErrConflict, and a
// successful update bumps Version. List returns pinned notes first, then the most
// recently updated.
type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	GetByID(ctx context.Context, id string) (*domain.Note, error)
	List(ctx context.Context, filter NoteFilter) ([]domain.Note, error)
	Update(ctx context.Context, note *domain.Note) error
	Delete(ctx context.Context, userID, id string) error
	TagCounts(ctx context.Context, userID string) ([]domain.TagCount, error)
}
