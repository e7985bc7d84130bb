package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/notesapp/notes-api/internal/middleware"
	"github.com/notesapp/notes-api/internal/model"
	"github.com/notesapp/notes-api/internal/service"
	"github.com/notesapp/notes-api/internal/storage"
)

// NoteHandler handles HTTP requests for note operations.
type NoteHandler struct {
	service        *service.NoteService
	maxUploadBytes int64
}

// NewNoteHandler creates a new NoteHandler. maxUploadBytes caps the whole
// request body, files included.
func NewNoteHandler(svc *service.NoteService, maxUploadBytes int64) *NoteHandler {
	return &NoteHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// HandleCreateNote handles POST /api/notes requests.
func (h *NoteHandler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("Authentication failed"))
		return
	}

	body, ok := h.readNoteBody(w, r)
	if !ok {
		return
	}
	defer body.close()

	req := model.CreateNoteRequest{}
	if body.multipart {
		req.Title = body.value("title")
		req.Content = body.value("content")
		req.ImageURL = body.value("imageUrl")
		req.AudioURL = body.value("audioUrl")
		req.Transcription = body.value("transcription")
	} else if err := json.Unmarshal(body.json, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	note, err := h.service.Create(r.Context(), userID, req, body.attachments)
	if err != nil {
		writeNoteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

// HandleListNotes handles GET /api/notes requests.
func (h *NoteHandler) HandleListNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("Authentication failed"))
		return
	}

	notes, err := h.service.List(r.Context(), userID)
	if err != nil {
		writeNoteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, notes)
}

// HandleGetNote handles GET /api/notes/{id} requests.
func (h *NoteHandler) HandleGetNote(w http.ResponseWriter, r *http.Request) {
	userID, noteID, ok := noteParams(w, r)
	if !ok {
		return
	}

	note, err := h.service.Get(r.Context(), userID, noteID)
	if err != nil {
		writeNoteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

// HandleUpdateNote handles PUT /api/notes/{id} requests. Only fields present
// in the request are changed.
func (h *NoteHandler) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, noteID, ok := noteParams(w, r)
	if !ok {
		return
	}

	body, ok := h.readNoteBody(w, r)
	if !ok {
		return
	}
	defer body.close()

	req := model.UpdateNoteRequest{}
	if body.multipart {
		req.Title = body.optional("title")
		req.Content = body.optional("content")
		req.ImageURL = body.optional("imageUrl")
		req.AudioURL = body.optional("audioUrl")
		req.Transcription = body.optional("transcription")
	} else if err := json.Unmarshal(body.json, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	note, err := h.service.Update(r.Context(), userID, noteID, req, body.attachments)
	if err != nil {
		writeNoteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

// HandleDeleteNote handles DELETE /api/notes/{id} requests.
func (h *NoteHandler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, noteID, ok := noteParams(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, noteID); err != nil {
		writeNoteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Note deleted"})
}

// HandleToggleFavorite handles PATCH /api/notes/{id}/favorite requests.
func (h *NoteHandler) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, noteID, ok := noteParams(w, r)
	if !ok {
		return
	}

	note, err := h.service.ToggleFavorite(r.Context(), userID, noteID)
	if err != nil {
		writeNoteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

// noteParams extracts the caller and the note id. Ids that are not UUIDs
// cannot name any note and get the ordinary 404.
func noteParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("Authentication failed"))
		return "", "", false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse("Note not found"))
		return "", "", false
	}

	return userID, id.String(), true
}

func writeNoteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNoteNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse("Note not found"))
	case errors.Is(err, service.ErrTitleRequired),
		errors.Is(err, service.ErrTitleTooLong),
		errors.Is(err, service.ErrContentTooLong),
		errors.Is(err, service.ErrInvalidMediaURL),
		errors.Is(err, service.ErrInvalidEncoding),
		errors.Is(err, service.ErrTooManyAttachments),
		errors.Is(err, storage.ErrInvalidMediaType):
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
	default:
		slog.ErrorContext(r.Context(), "note operation failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeInternalError(w)
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
