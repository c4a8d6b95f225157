package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/notes-service/internal/domain"
)

// MemoryStore keeps users and notes in process memory. It backs STORAGE_DRIVER=memory and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
	notes map[string]domain.Note
	now   func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]domain.User),
		notes: make(map[string]domain.Note),
		now:   time.Now,
	}
}

// Users exposes the store as a UserRepository.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Notes exposes the store as a NoteRepository.
func (s *MemoryStore) Notes() NoteRepository { return memoryNotes{s} }

// DeleteUser removes a user; notes are left in place.
func (s *MemoryStore) DeleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Username == user.Username {
			return ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = r.s.now()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return nil
}

func (r memoryUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r memoryUsers) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryUsers) Ping(context.Context) error { return nil }

type memoryNotes struct{ s *MemoryStore }

func (r memoryNotes) Create(_ context.Context, note *domain.Note) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	note.ID = uuid.NewString()
	note.Version = 1
	note.CreatedAt = r.s.now()
	note.UpdatedAt = note.CreatedAt
	r.s.notes[note.ID] = cloneNote(*note)
	return nil
}

func (r memoryNotes) GetByID(_ context.Context, id string) (*domain.Note, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	note, ok := r.s.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	n := cloneNote(note)
	return &n, nil
}

func (r memoryNotes) List(_ context.Context, filter NoteFilter) ([]domain.Note, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []domain.Note
	for _, note := range r.s.notes {
		if note.UserID != filter.UserID {
			continue
		}
		if filter.Tag != "" && !containsString(note.Tags, filter.Tag) {
			continue
		}
		if filter.HasReminder && note.Reminder == nil {
			continue
		}
		if filter.IsPinned != nil && note.IsPinned != *filter.IsPinned {
			continue
		}
		if filter.IsArchived != nil && note.IsArchived != *filter.IsArchived {
			continue
		}
		if search != "" && !noteMatches(note, search) {
			continue
		}
		out = append(out, cloneNote(note))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r memoryNotes) Update(_ context.Context, note *domain.Note) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.notes[note.ID]
	if !ok || existing.UserID != note.UserID {
		return ErrNotFound
	}
	if existing.Version != note.Version {
		return ErrConflict
	}
	note.Version++
	note.CreatedAt = existing.CreatedAt
	note.UpdatedAt = r.s.now()
	r.s.notes[note.ID] = cloneNote(*note)
	return nil
}

func (r memoryNotes) Delete(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.notes[id]
	if !ok || existing.UserID != userID {
		return ErrNotFound
	}
	delete(r.s.notes, id)
	return nil
}

func (r memoryNotes) TagCounts(_ context.Context, userID string) ([]domain.TagCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := map[string]int{}
	for _, note := range r.s.notes {
		if note.UserID != userID {
			continue
		}
		for _, tag := range note.Tags {
			counts[tag]++
		}
	}
	out := make([]domain.TagCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, domain.TagCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func noteMatches(note domain.Note, search string) bool {
	if strings.Contains(strings.ToLower(note.Title), search) ||
		strings.Contains(strings.ToLower(note.ContentHTML), search) {
		return true
	}
	for _, tag := range note.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// cloneNote copies the slices so callers cannot mutate stored state.
func cloneNote(n domain.Note) domain.Note {
	n.Tags = append([]string(nil), n.Tags...)
	n.TodoItems = append([]domain.TodoItem(nil), n.TodoItems...)
	if n.Reminder != nil {
		r := *n.Reminder
		n.Reminder = &r
	}
	return n
}
