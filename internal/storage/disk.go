package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/notesapp/notes-api/internal/model"
)

// DiskStore keeps media under a local directory served at /uploads.
type DiskStore struct {
	root    string
	baseURL string
	now     func() time.Time
}

// NewDiskStore creates the images/ and audio/ directories under root.
// baseURL is the public origin the files are served from.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	for _, kind := range []model.MediaKind{model.MediaImage, model.MediaAudio} {
		if err := os.MkdirAll(filepath.Join(root, Dir(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("creating upload directory: %w", err)
		}
	}

	return &DiskStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

// Root returns the directory files are written to.
func (s *DiskStore) Root() string {
	return s.root
}

// Save writes the attachment to a temp file and renames it into place, so a
// failed write never leaves a partial file under a public name.
func (s *DiskStore) Save(ctx context.Context, att model.Attachment) (string, error) {
	mediaType, err := ValidateContentType(att.Kind, att.ContentType)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, Dir(att.Kind))
	name := objectName(s.now(), att.Filename, mediaType, att.Kind)

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, att.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("writing upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("closing upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storing upload: %w", err)
	}

	return s.baseURL + "/uploads/" + Dir(att.Kind) + "/" + name, nil
}

// Owns reports whether url was produced by this store.
func (s *DiskStore) Owns(url string) bool {
	_, ok := s.pathFor(url)
	return ok
}

// Delete removes the file behind url. Missing files and foreign URLs are not errors.
func (s *DiskStore) Delete(_ context.Context, url string) error {
	p, ok := s.pathFor(url)
	if !ok {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *DiskStore) pathFor(url string) (string, bool) {
	rel, found := strings.CutPrefix(url, s.baseURL+"/uploads/")
	if !found {
		return "", false
	}

	dir, name, found := strings.Cut(rel, "/")
	if !found || name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", false
	}
	if dir != Dir(model.MediaImage) && dir != Dir(model.MediaAudio) {
		return "", false
	}

	return filepath.Join(s.root, dir, name), true
}
