// Package storage validates uploaded note media and persists it to disk or
// to an S3-compatible bucket, handing back the URL the note will reference.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/notesapp/notes-api/internal/model"
)

var ErrInvalidMediaType = errors.New("unsupported media type")

// MediaStore persists note attachments.
type MediaStore interface {
	// Save validates and stores the attachment, returning its public URL.
	Save(ctx context.Context, att model.Attachment) (string, error)
	// Delete removes media previously returned by Save. URLs the store does
	// not own are ignored.
	Delete(ctx context.Context, url string) error
	// Owns reports whether url points at media held by this store.
	Owns(url string) bool
}

// allowedTypes maps each media kind to its accepted MIME types and the
// extension used when the uploaded file name has none.
var allowedTypes = map[model.MediaKind]map[string]string{
	model.MediaImage: {
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
	},
	model.MediaAudio: {
		"audio/webm":  ".webm",
		"audio/ogg":   ".ogg",
		"audio/mpeg":  ".mp3",
		"audio/mp3":   ".mp3",
		"audio/wav":   ".wav",
		"audio/x-wav": ".wav",
		"audio/wave":  ".wav",
		"audio/mp4":   ".m4a",
		"audio/x-m4a": ".m4a",
		"audio/aac":   ".aac",
	},
}

var contentTypesByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
}

// ValidateContentType checks a declared Content-Type against the allow-list
// for kind and returns the bare media type (parameters such as codecs are
// dropped).
func ValidateContentType(kind model.MediaKind, contentType string) (string, error) {
	allowed, ok := allowedTypes[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown attachment kind %q", ErrInvalidMediaType, kind)
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMediaType, contentType)
	}
	mediaType = strings.ToLower(mediaType)

	if _, ok := allowed[mediaType]; !ok {
		return "", fmt.Errorf("%w: %s not allowed for %s", ErrInvalidMediaType, mediaType, kind)
	}

	return mediaType, nil
}

// ContentTypeForExt returns the served Content-Type for a stored file
// extension, or "" when unknown.
func ContentTypeForExt(ext string) string {
	return contentTypesByExt[strings.ToLower(ext)]
}

// Dir returns the sub-directory (and key prefix) media of kind is stored under.
func Dir(kind model.MediaKind) string {
	switch kind {
	case model.MediaImage:
		return "images"
	case model.MediaAudio:
		return "audio"
	default:
		return ""
	}
}

// objectName builds a collision-resistant file name:
// <unix millis>-<8 hex chars>-<sanitized base name><ext>. The extension
// always comes from the validated media type, never from the client's file
// name, since static serving derives Content-Type from it.
func objectName(now time.Time, filename, mediaType string, kind model.MediaKind) string {
	name := sanitizeFilename(filename)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" || base == "_" {
		base = "file"
	}
	name = base + allowedTypes[kind][mediaType]
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), suffix, name)
}

const maxNameLength = 100

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxNameLength {
		out = out[len(out)-maxNameLength:]
	}
	if out == "" || out == "_" {
		out = "file"
	}
	return out
}
