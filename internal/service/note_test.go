package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/notesapp/notes-api/internal/model"
	"github.com/notesapp/notes-api/internal/repository/memory"
	"github.com/notesapp/notes-api/internal/storage"
)

const testBaseURL = "http://notes.test"

func newTestNoteService(t *testing.T) (*NoteService, string) {
	t.Helper()
	root := t.TempDir()
	media, err := storage.NewDiskStore(root, testBaseURL)
	if err != nil {
		t.Fatalf("NewDiskStore() unexpected error: %v", err)
	}
	return NewNoteService(memory.NewNoteRepository(), media), root
}

func image(body string) model.Attachment {
	return model.Attachment{Kind: model.MediaImage, Filename: "cat.png", ContentType: "image/png", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func audio(body string) model.Attachment {
	return model.Attachment{Kind: model.MediaAudio, Filename: "memo.webm", ContentType: "audio/webm;codecs=opus", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func storedFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	for _, dir := range []string{"images", "audio"} {
		entries, err := os.ReadDir(filepath.Join(root, dir))
		if err != nil {
			t.Fatalf("ReadDir(%s): %v", dir, err)
		}
		for _, e := range entries {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files
}

func ptr(s string) *string { return &s }

// longURL returns an absolute https URL exactly n bytes long.
func longURL(n int) string {
	prefix := "https://cdn.example.com/"
	return prefix + strings.Repeat("a", n-len(prefix))
}

func TestCreateNote_Validation(t *testing.T) {
	svc, _ := newTestNoteService(t)

	tests := []struct {
		name string
		req  model.CreateNoteRequest
		want error
	}{
		{"empty title", model.CreateNoteRequest{Title: "  "}, ErrTitleRequired},
		{"long title", model.CreateNoteRequest{Title: strings.Repeat("é", 256)}, ErrTitleTooLong},
		{"long content", model.CreateNoteRequest{Title: "t", Content: strings.Repeat("a", maxContentLength+1)}, ErrContentTooLong},
		{"relative image url", model.CreateNoteRequest{Title: "t", ImageURL: "/uploads/images/x.png"}, ErrInvalidMediaURL},
		{"ftp audio url", model.CreateNoteRequest{Title: "t", AudioURL: "ftp://host/a.mp3"}, ErrInvalidMediaURL},
		{"url of stored media", model.CreateNoteRequest{Title: "t", ImageURL: testBaseURL + "/uploads/images/1-x.png"}, ErrInvalidMediaURL},
		{"over-long image url", model.CreateNoteRequest{Title: "t", ImageURL: longURL(maxMediaURLLength + 1)}, ErrInvalidMediaURL},
		{"non utf-8 audio url", model.CreateNoteRequest{Title: "t", AudioURL: "https://cdn.example.com/\xff.mp3"}, ErrInvalidMediaURL},
		{"non utf-8 title", model.CreateNoteRequest{Title: "bad\xfftitle"}, ErrInvalidEncoding},
		{"non utf-8 content", model.CreateNoteRequest{Title: "t", Content: "\xc3\x28"}, ErrInvalidEncoding},
		{"non utf-8 transcription", model.CreateNoteRequest{Title: "t", Transcription: "\xff"}, ErrInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "alice", tt.req, nil)
			if err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateNote_WithAttachments(t *testing.T) {
	svc, root := newTestNoteService(t)

	note, err := svc.Create(context.Background(), "alice", model.CreateNoteRequest{
		Title:         " Groceries ",
		Content:       "milk",
		Transcription: "buy milk",
	}, []model.Attachment{image("png-bytes"), audio("webm-bytes")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if note.ID == "" || note.UserID != "alice" || note.Title != "Groceries" || note.Favorite {
		t.Errorf("unexpected note: %+v", note)
	}
	if !strings.HasPrefix(note.ImageURL, testBaseURL+"/uploads/images/") {
		t.Errorf("ImageURL = %q", note.ImageURL)
	}
	if !strings.HasPrefix(note.AudioURL, testBaseURL+"/uploads/audio/") || !strings.HasSuffix(note.AudioURL, ".webm") {
		t.Errorf("AudioURL = %q", note.AudioURL)
	}
	if got := storedFiles(t, root); len(got) != 2 {
		t.Errorf("stored files = %v, want 2", got)
	}
}

func TestCreateNote_RejectsBadTypeBeforeWriting(t *testing.T) {
	svc, root := newTestNoteService(t)

	bad := image("gif?")
	bad.ContentType = "application/pdf"

	_, err := svc.Create(context.Background(), "alice", model.CreateNoteRequest{Title: "t"},
		[]model.Attachment{audio("ok"), bad})
	if !errors.Is(err, storage.ErrInvalidMediaType) {
		t.Fatalf("expected ErrInvalidMediaType, got %v", err)
	}
	if got := storedFiles(t, root); len(got) != 0 {
		t.Errorf("files written for rejected request: %v", got)
	}
}

func TestCreateNote_TooManyAttachments(t *testing.T) {
	svc, _ := newTestNoteService(t)

	_, err := svc.Create(context.Background(), "alice", model.CreateNoteRequest{Title: "t"},
		[]model.Attachment{image("a"), image("b")})
	if err != ErrTooManyAttachments {
		t.Errorf("expected ErrTooManyAttachments, got %v", err)
	}
}

type failingNoteStore struct {
	*memory.NoteRepository
}

var errInsert = errors.New("insert failed")

func (failingNoteStore) Create(context.Context, *model.Note) error { return errInsert }

func TestCreateNote_FailedInsertRemovesMedia(t *testing.T) {
	root := t.TempDir()
	media, err := storage.NewDiskStore(root, testBaseURL)
	if err != nil {
		t.Fatalf("NewDiskStore() unexpected error: %v", err)
	}
	svc := NewNoteService(failingNoteStore{memory.NewNoteRepository()}, media)

	_, err = svc.Create(context.Background(), "alice", model.CreateNoteRequest{Title: "t"},
		[]model.Attachment{image("png"), audio("webm")})
	if !errors.Is(err, errInsert) {
		t.Fatalf("expected insert error, got %v", err)
	}
	if got := storedFiles(t, root); len(got) != 0 {
		t.Errorf("orphaned files after failed insert: %v", got)
	}
}

func TestListNotes_ScopedAndEmpty(t *testing.T) {
	svc, _ := newTestNoteService(t)
	ctx := context.Background()

	notes, err := svc.List(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notes == nil || len(notes) != 0 {
		t.Errorf("List() = %#v, want empty slice", notes)
	}

	if _, err := svc.Create(ctx, "bob", model.CreateNoteRequest{Title: "bob's"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	notes, _ = svc.List(ctx, "alice")
	if len(notes) != 0 {
		t.Errorf("List() leaked other users' notes: %+v", notes)
	}
}

func TestUpdateNote(t *testing.T) {
	svc, root := newTestNoteService(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, "alice", model.CreateNoteRequest{Title: "t", Content: "c"},
		[]model.Attachment{image("old")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oldImage := note.ImageURL

	updated, err := svc.Update(ctx, "alice", note.ID, model.UpdateNoteRequest{
		Content: ptr("new content"),
	}, []model.Attachment{image("new")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Title != "t" || updated.Content != "new content" {
		t.Errorf("unexpected note: %+v", updated)
	}
	if updated.ImageURL == oldImage || updated.ImageURL == "" {
		t.Errorf("ImageURL not replaced: %q", updated.ImageURL)
	}
	if got := storedFiles(t, root); len(got) != 1 {
		t.Errorf("stored files = %v, want only the replacement", got)
	}
}

func TestUpdateNote_ClearAndExternalURL(t *testing.T) {
	svc, root := newTestNoteService(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, "alice", model.CreateNoteRequest{Title: "t"},
		[]model.Attachment{image("img"), audio("aud")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := svc.Update(ctx, "alice", note.ID, model.UpdateNoteRequest{
		ImageURL: ptr(""),
		AudioURL: ptr("https://cdn.example.com/a.mp3"),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ImageURL != "" || updated.AudioURL != "https://cdn.example.com/a.mp3" {
		t.Errorf("unexpected note: %+v", updated)
	}
	if got := storedFiles(t, root); len(got) != 0 {
		t.Errorf("stored files = %v, want none", got)
	}
}

func TestUpdateNote_CannotBorrowStoredMedia(t *testing.T) {
	svc, _ := newTestNoteService(t)
	ctx := context.Background()

	bobs, err := svc.Create(ctx, "bob", model.CreateNoteRequest{Title: "b"}, []model.Attachment{image("img")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mine, err := svc.Create(ctx, "alice", model.CreateNoteRequest{Title: "a"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Update(ctx, "alice", mine.ID, model.UpdateNoteRequest{ImageURL: ptr(bobs.ImageURL)}, nil)
	if err != ErrInvalidMediaURL {
		t.Errorf("expected ErrInvalidMediaURL, got %v", err)
	}
}

func TestUpdateNote_NotOwnedDiscardsUploads(t *testing.T) {
	svc, root := newTestNoteService(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, "alice", model.CreateNoteRequest{Title: "t"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Update(ctx, "mallory", note.ID, model.UpdateNoteRequest{Title: ptr("pwned")},
		[]model.Attachment{image("x")})
	if err != ErrNoteNotFound {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}
	if got := storedFiles(t, root); len(got) != 0 {
		t.Errorf("upload kept after rejected update: %v", got)
	}

	got, _ := svc.Get(ctx, "alice", note.ID)
	if got.Title != "t" {
		t.Errorf("title changed by non-owner: %q", got.Title)
	}
}

func TestToggleFavorite(t *testing.T) {
	svc, _ := newTestNoteService(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, "alice", model.CreateNoteRequest{Title: "t"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := svc.ToggleFavorite(ctx, "alice", note.ID)
	if err != nil || !first.Favorite {
		t.Fatalf("first toggle = %+v, %v", first, err)
	}
	second, err := svc.ToggleFavorite(ctx, "alice", note.ID)
	if err != nil || second.Favorite {
		t.Fatalf("second toggle = %+v, %v", second, err)
	}

	if _, err := svc.ToggleFavorite(ctx, "bob", note.ID); err != ErrNoteNotFound {
		t.Errorf("expected ErrNoteNotFound, got %v", err)
	}
}

func TestDeleteNote_RemovesMedia(t *testing.T) {
	svc, root := newTestNoteService(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, "alice", model.CreateNoteRequest{Title: "t"},
		[]model.Attachment{image("img"), audio("aud")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(ctx, "bob", note.ID); err != ErrNoteNotFound {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, "alice", note.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := storedFiles(t, root); len(got) != 0 {
		t.Errorf("media left after delete: %v", got)
	}
	if _, err := svc.Get(ctx, "alice", note.ID); err != ErrNoteNotFound {
		t.Errorf("expected ErrNoteNotFound, got %v", err)
	}
}

func TestMediaURLLengthBoundary(t *testing.T) {
	svc, _ := newTestNoteService(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, "alice", model.CreateNoteRequest{Title: "t", ImageURL: longURL(maxMediaURLLength)}, nil)
	if err != nil {
		t.Fatalf("unexpected error for a %d-byte url: %v", maxMediaURLLength, err)
	}

	_, err = svc.Update(ctx, "alice", note.ID, model.UpdateNoteRequest{AudioURL: ptr(longURL(maxMediaURLLength + 1))}, nil)
	if err != ErrInvalidMediaURL {
		t.Errorf("expected ErrInvalidMediaURL, got %v", err)
	}
}

func TestUpdateNote_RejectsInvalidUTF8(t *testing.T) {
	svc, _ := newTestNoteService(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, "alice", model.CreateNoteRequest{Title: "t", Content: "c"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, req := range []model.UpdateNoteRequest{
		{Title: ptr("\xff")},
		{Content: ptr("ok \xfe")},
		{Transcription: ptr("\xc0\xaf")},
	} {
		if _, err := svc.Update(ctx, "alice", note.ID, req, nil); err != ErrInvalidEncoding {
			t.Errorf("Update(%+v) expected ErrInvalidEncoding, got %v", req, err)
		}
	}

	got, _ := svc.Get(ctx, "alice", note.ID)
	if got.Title != "t" || got.Content != "c" {
		t.Errorf("rejected update changed note: %+v", got)
	}
}
