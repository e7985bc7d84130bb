package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/notesapp/notes-api/internal/middleware"
	"github.com/notesapp/notes-api/internal/service"
)

// RouterConfig holds everything NewRouter wires together.
type RouterConfig struct {
	Auth           *service.AuthService
	Notes          *service.NoteService
	JWTSecret      string
	AllowedOrigins []string
	MaxUploadBytes int64
	// UploadDir is served at /uploads when set (disk media backend).
	UploadDir string
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Auth)
	noteHandler := NewNoteHandler(cfg.Notes, cfg.MaxUploadBytes)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse("Not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("Method not allowed"))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if cfg.UploadDir != "" {
		mediaHandler := NewMediaHandler(cfg.UploadDir)
		r.Get("/uploads/{dir}/{name}", mediaHandler.HandleServe)
		r.Head("/uploads/{dir}/{name}", mediaHandler.HandleServe)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.With(middleware.JWTAuth(cfg.JWTSecret)).Get("/me", authHandler.HandleMe)
	})

	r.Route("/api/notes", func(r chi.Router) {
		r.Use(middleware.JWTAuth(cfg.JWTSecret))

		r.Get("/", noteHandler.HandleListNotes)
		r.Post("/", noteHandler.HandleCreateNote)
		r.Get("/{id}", noteHandler.HandleGetNote)
		r.Put("/{id}", noteHandler.HandleUpdateNote)
		r.Delete("/{id}", noteHandler.HandleDeleteNote)
		r.Patch("/{id}/favorite", noteHandler.HandleToggleFavorite)
	})

	return r
}
