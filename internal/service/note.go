package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/notesapp/notes-api/internal/model"
	"github.com/notesapp/notes-api/internal/repository"
	"github.com/notesapp/notes-api/internal/storage"
)

const (
	maxTitleLength    = 255
	maxContentLength  = 1 << 20
	maxMediaURLLength = 2048
)

var (
	ErrTitleRequired      = errors.New("title is required")
	ErrTitleTooLong       = errors.New("title too long (max 255 characters)")
	ErrContentTooLong     = errors.New("content too long (max 1MB)")
	ErrInvalidMediaURL    = errors.New("media url must be an absolute http(s) url of at most 2048 bytes")
	ErrInvalidEncoding    = errors.New("text fields must be valid UTF-8")
	ErrTooManyAttachments = errors.New("at most one image and one audio file per note")
	ErrNoteNotFound       = errors.New("note not found")
)

// NoteStore persists notes. Every single-note method is scoped by owner and
// reports repository.ErrNoteNotFound for absent or foreign notes.
type NoteStore interface {
	Create(ctx context.Context, note *model.Note) error
	ListByOwner(ctx context.Context, ownerID string) ([]model.Note, error)
	GetByID(ctx context.Context, ownerID, id string) (*model.Note, error)
	Update(ctx context.Context, ownerID, id string, apply func(*model.Note) error) (*model.Note, error)
	ToggleFavorite(ctx context.Context, ownerID, id string) (*model.Note, error)
	Delete(ctx context.Context, ownerID, id string) (*model.Note, error)
}

// NoteService handles note business logic.
type NoteService struct {
	repo  NoteStore
	media storage.MediaStore
}

// NewNoteService creates a new NoteService.
func NewNoteService(repo NoteStore, media storage.MediaStore) *NoteService {
	return &NoteService{repo: repo, media: media}
}

// Create stores attachments and inserts a new note owned by ownerID. If the
// insert fails the stored attachments are removed again.
func (s *NoteService) Create(ctx context.Context, ownerID string, req model.CreateNoteRequest, atts []model.Attachment) (model.Note, error) {
	if err := validateEncoding(req.Title, req.Content, req.Transcription); err != nil {
		return model.Note{}, err
	}
	title := strings.TrimSpace(req.Title)
	if err := validateTitle(title); err != nil {
		return model.Note{}, err
	}
	if err := validateContent(req.Content); err != nil {
		return model.Note{}, err
	}
	for _, u := range []string{req.ImageURL, req.AudioURL} {
		if err := s.validateMediaURL(u); err != nil {
			return model.Note{}, err
		}
	}
	if err := validateAttachments(atts); err != nil {
		return model.Note{}, err
	}

	saved, err := s.saveAttachments(ctx, atts)
	if err != nil {
		return model.Note{}, err
	}

	note := model.Note{
		UserID:        ownerID,
		Title:         title,
		Content:       req.Content,
		ImageURL:      req.ImageURL,
		AudioURL:      req.AudioURL,
		Transcription: req.Transcription,
	}
	if u, ok := saved[model.MediaImage]; ok {
		note.ImageURL = u
	}
	if u, ok := saved[model.MediaAudio]; ok {
		note.AudioURL = u
	}

	if err := s.repo.Create(ctx, &note); err != nil {
		s.discard(ctx, urls(saved)...)
		return model.Note{}, err
	}

	return note, nil
}

// List returns the owner's notes, newest first.
func (s *NoteService) List(ctx context.Context, ownerID string) ([]model.Note, error) {
	notes, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []model.Note{}
	}
	return notes, nil
}

// Get returns a single note owned by ownerID.
func (s *NoteService) Get(ctx context.Context, ownerID, noteID string) (model.Note, error) {
	note, err := s.repo.GetByID(ctx, ownerID, noteID)
	if err != nil {
		return model.Note{}, mapNoteErr(err)
	}
	return *note, nil
}

// Update applies the supplied fields to the owner's note. Uploaded
// attachments replace the matching URL; media the note no longer references
// is removed after the update commits.
func (s *NoteService) Update(ctx context.Context, ownerID, noteID string, req model.UpdateNoteRequest, atts []model.Attachment) (model.Note, error) {
	for _, field := range []*string{req.Title, req.Content, req.Transcription} {
		if field != nil {
			if err := validateEncoding(*field); err != nil {
				return model.Note{}, err
			}
		}
	}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if err := validateTitle(trimmed); err != nil {
			return model.Note{}, err
		}
		req.Title = &trimmed
	}
	if req.Content != nil {
		if err := validateContent(*req.Content); err != nil {
			return model.Note{}, err
		}
	}
	for _, u := range []*string{req.ImageURL, req.AudioURL} {
		if u != nil && *u != "" {
			if _, err := parseMediaURL(*u); err != nil {
				return model.Note{}, err
			}
		}
	}
	if err := validateAttachments(atts); err != nil {
		return model.Note{}, err
	}

	saved, err := s.saveAttachments(ctx, atts)
	if err != nil {
		return model.Note{}, err
	}

	var replaced []string
	note, err := s.repo.Update(ctx, ownerID, noteID, func(n *model.Note) error {
		replaced = replaced[:0]

		if req.Title != nil {
			n.Title = *req.Title
		}
		if req.Content != nil {
			n.Content = *req.Content
		}
		if req.Transcription != nil {
			n.Transcription = *req.Transcription
		}

		imageURL, err := s.nextMediaURL(n.ImageURL, req.ImageURL, saved, model.MediaImage)
		if err != nil {
			return err
		}
		audioURL, err := s.nextMediaURL(n.AudioURL, req.AudioURL, saved, model.MediaAudio)
		if err != nil {
			return err
		}

		if imageURL != n.ImageURL {
			replaced = append(replaced, n.ImageURL)
			n.ImageURL = imageURL
		}
		if audioURL != n.AudioURL {
			replaced = append(replaced, n.AudioURL)
			n.AudioURL = audioURL
		}
		return nil
	})
	if err != nil {
		s.discard(ctx, urls(saved)...)
		return model.Note{}, mapNoteErr(err)
	}

	s.discard(ctx, replaced...)
	return *note, nil
}

// nextMediaURL resolves the URL an attachment slot ends up with: an upload
// wins, then an explicit URL from the request, otherwise the current value.
// Clients may not point a note at media this server stores for another note.
func (s *NoteService) nextMediaURL(current string, requested *string, saved map[model.MediaKind]string, kind model.MediaKind) (string, error) {
	if u, ok := saved[kind]; ok {
		return u, nil
	}
	if requested == nil || *requested == current {
		return current, nil
	}
	if *requested != "" && s.media.Owns(*requested) {
		return "", ErrInvalidMediaURL
	}
	return *requested, nil
}

// Delete permanently removes the owner's note and its stored media.
func (s *NoteService) Delete(ctx context.Context, ownerID, noteID string) error {
	deleted, err := s.repo.Delete(ctx, ownerID, noteID)
	if err != nil {
		return mapNoteErr(err)
	}

	s.discard(ctx, deleted.ImageURL, deleted.AudioURL)
	return nil
}

// ToggleFavorite flips the favorite flag on the owner's note.
func (s *NoteService) ToggleFavorite(ctx context.Context, ownerID, noteID string) (model.Note, error) {
	note, err := s.repo.ToggleFavorite(ctx, ownerID, noteID)
	if err != nil {
		return model.Note{}, mapNoteErr(err)
	}
	return *note, nil
}

func (s *NoteService) saveAttachments(ctx context.Context, atts []model.Attachment) (map[model.MediaKind]string, error) {
	saved := make(map[model.MediaKind]string, len(atts))
	for _, att := range atts {
		u, err := s.media.Save(ctx, att)
		if err != nil {
			s.discard(ctx, urls(saved)...)
			return nil, fmt.Errorf("saving %s: %w", att.Kind, err)
		}
		saved[att.Kind] = u
	}
	return saved, nil
}

// discard removes stored media best-effort; failures are only logged.
func (s *NoteService) discard(ctx context.Context, mediaURLs ...string) {
	for _, u := range mediaURLs {
		if u == "" || !s.media.Owns(u) {
			continue
		}
		if err := s.media.Delete(ctx, u); err != nil {
			slog.WarnContext(ctx, "failed to remove stored media", "url", u, "error", err)
		}
	}
}

func (s *NoteService) validateMediaURL(raw string) error {
	if raw == "" {
		return nil
	}
	if _, err := parseMediaURL(raw); err != nil {
		return err
	}
	if s.media.Owns(raw) {
		return ErrInvalidMediaURL
	}
	return nil
}

func parseMediaURL(raw string) (*url.URL, error) {
	if len(raw) > maxMediaURLLength || !utf8.ValidString(raw) {
		return nil, ErrInvalidMediaURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidMediaURL
	}
	return u, nil
}

func validateTitle(title string) error {
	if title == "" {
		return ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

// validateEncoding rejects bytes the utf8mb4 columns cannot store. JSON
// decoding already replaces them; multipart values arrive raw.
func validateEncoding(fields ...string) error {
	for _, f := range fields {
		if !utf8.ValidString(f) {
			return ErrInvalidEncoding
		}
	}
	return nil
}

func validateContent(content string) error {
	if len(content) > maxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// validateAttachments checks slot counts and MIME types before anything is written.
func validateAttachments(atts []model.Attachment) error {
	seen := make(map[model.MediaKind]bool, len(atts))
	for _, att := range atts {
		if seen[att.Kind] {
			return ErrTooManyAttachments
		}
		seen[att.Kind] = true

		if _, err := storage.ValidateContentType(att.Kind, att.ContentType); err != nil {
			return err
		}
	}
	return nil
}

func urls(saved map[model.MediaKind]string) []string {
	out := make([]string, 0, len(saved))
	for _, u := range saved {
		out = append(out, u)
	}
	return out
}

func mapNoteErr(err error) error {
	if errors.Is(err, repository.ErrNoteNotFound) {
		return ErrNoteNotFound
	}
	return err
}
