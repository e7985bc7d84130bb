// Package memory provides process-local user and note stores with the same
// contract as the MySQL repositories. Selected with STORE_BACKEND=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/notesapp/notes-api/internal/model"
	"github.com/notesapp/notes-api/internal/repository"
)

// UserRepository keeps user accounts in memory, keyed by ID and by exact email.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]model.User
	byEmail map[string]string
}

// NewUserRepository creates a new, empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]model.User),
		byEmail: make(map[string]string),
	}
}

func (r *UserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return repository.ErrDuplicateEmail
	}

	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

// NoteRepository keeps notes in memory. Each note also gets an insertion
// sequence number that orders notes created within the same millisecond.
type NoteRepository struct {
	mu      sync.Mutex
	notes   map[string]model.Note
	seq     map[string]uint64
	nextSeq uint64
	now     func() time.Time
}

// NewNoteRepository creates a new, empty NoteRepository.
func NewNoteRepository() *NoteRepository {
	return &NoteRepository{
		notes: make(map[string]model.Note),
		seq:   make(map[string]uint64),
		now:   time.Now,
	}
}

func (r *NoteRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

func (r *NoteRepository) Create(_ context.Context, note *model.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	note.ID = uuid.NewString()
	note.CreatedAt = r.timestamp()
	note.UpdatedAt = note.CreatedAt
	r.notes[note.ID] = *note
	r.nextSeq++
	r.seq[note.ID] = r.nextSeq
	return nil
}

// ListByOwner returns the owner's notes newest first. Notes sharing a
// timestamp are ordered by insertion, latest first.
func (r *NoteRepository) ListByOwner(_ context.Context, ownerID string) ([]model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	notes := []model.Note{}
	for _, n := range r.notes {
		if n.UserID == ownerID {
			notes = append(notes, n)
		}
	}

	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.After(notes[j].CreatedAt)
		}
		return r.seq[notes[i].ID] > r.seq[notes[j].ID]
	})

	return notes, nil
}

func (r *NoteRepository) GetByID(_ context.Context, ownerID, id string) (*model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.owned(ownerID, id)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Update applies fn to a copy and stores it only if fn succeeds. Only the
// mutable fields are taken from the copy.
func (r *NoteRepository) Update(_ context.Context, ownerID, id string, apply func(*model.Note) error) (*model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.owned(ownerID, id)
	if err != nil {
		return nil, err
	}

	draft := current
	if err := apply(&draft); err != nil {
		return nil, err
	}

	current.Title = draft.Title
	current.Content = draft.Content
	current.ImageURL = draft.ImageURL
	current.AudioURL = draft.AudioURL
	current.Transcription = draft.Transcription
	current.UpdatedAt = r.timestamp()
	r.notes[id] = current

	return &current, nil
}

func (r *NoteRepository) ToggleFavorite(_ context.Context, ownerID, id string) (*model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.owned(ownerID, id)
	if err != nil {
		return nil, err
	}

	n.Favorite = !n.Favorite
	n.UpdatedAt = r.timestamp()
	r.notes[id] = n
	return &n, nil
}

func (r *NoteRepository) Delete(_ context.Context, ownerID, id string) (*model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.owned(ownerID, id)
	if err != nil {
		return nil, err
	}

	delete(r.notes, id)
	delete(r.seq, id)
	return &n, nil
}

// owned must be called with mu held.
func (r *NoteRepository) owned(ownerID, id string) (model.Note, error) {
	n, ok := r.notes[id]
	if !ok || n.UserID != ownerID {
		return model.Note{}, repository.ErrNoteNotFound
	}
	return n, nil
}
