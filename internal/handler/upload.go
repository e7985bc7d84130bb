package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/notesapp/notes-api/internal/model"
	"github.com/notesapp/notes-api/internal/service"
	"github.com/notesapp/notes-api/internal/storage"
)

// Form parts above this size are spooled to temp files by mime/multipart.
const multipartMemory = 1 << 20

// noteBody is a decoded create/update request: either raw JSON or a parsed
// multipart form with its opened files.
type noteBody struct {
	multipart   bool
	json        []byte
	form        *multipart.Form
	files       []multipart.File
	attachments []model.Attachment
}

func (b *noteBody) value(key string) string {
	if vs := b.form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// optional returns nil when the part is absent, so updates leave the field alone.
func (b *noteBody) optional(key string) *string {
	vs, ok := b.form.Value[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	v := vs[0]
	return &v
}

func (b *noteBody) close() {
	for _, f := range b.files {
		f.Close()
	}
	if b.form != nil {
		b.form.RemoveAll()
	}
}

// readNoteBody enforces the upload cap and decodes the body. On failure the
// error response has already been written.
func (h *NoteHandler) readNoteBody(w http.ResponseWriter, r *http.Request) (*noteBody, bool) {
	if r.ContentLength > h.maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("request body too large"))
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if !isMultipart(r) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			if isTooLarge(err) {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("request body too large"))
				return nil, false
			}
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
			return nil, false
		}
		return &noteBody{json: data}, true
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("request body too large"))
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid multipart form"))
		return nil, false
	}

	body := &noteBody{multipart: true, form: r.MultipartForm}
	for _, kind := range []model.MediaKind{model.MediaImage, model.MediaAudio} {
		headers := body.form.File[string(kind)]
		if len(headers) == 0 {
			continue
		}
		if len(headers) > 1 {
			body.close()
			writeJSON(w, http.StatusBadRequest, errorResponse(service.ErrTooManyAttachments.Error()))
			return nil, false
		}

		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			body.close()
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid multipart form"))
			return nil, false
		}
		body.files = append(body.files, f)
		body.attachments = append(body.attachments, model.Attachment{
			Kind:        kind,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	return body, true
}

// MediaHandler serves files written by storage.DiskStore under
// /uploads/{dir}/{name}. Directory listings are never produced.
type MediaHandler struct {
	root string
}

// NewMediaHandler creates a MediaHandler reading from root.
func NewMediaHandler(root string) *MediaHandler {
	return &MediaHandler{root: root}
}

// HandleServe handles GET /uploads/{dir}/{name} requests.
func (h *MediaHandler) HandleServe(w http.ResponseWriter, r *http.Request) {
	dir := chi.URLParam(r, "dir")
	name := chi.URLParam(r, "name")

	if (dir != storage.Dir(model.MediaImage) && dir != storage.Dir(model.MediaAudio)) ||
		name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(filepath.Join(h.root, dir, name))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	ct := storage.ContentTypeForExt(filepath.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, name, info.ModTime(), f)
}
