package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/notesapp/notes-api/internal/crypto"
)

const testSecret = "middleware-secret"

func protected(t *testing.T, secret string) http.Handler {
	t.Helper()
	return JWTAuth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		if !ok {
			t.Error("UserIDFromContext() found no user id")
		}
		w.Write([]byte(id))
	}))
}

func TestJWTAuth_Valid(t *testing.T) {
	token, err := crypto.GenerateToken("user-1", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected(t, testSecret).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "user-1" {
		t.Errorf("user id = %q, want user-1", rec.Body.String())
	}
}

func TestJWTAuth_Rejections(t *testing.T) {
	expired, err := crypto.GenerateToken("user-1", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() unexpected error: %v", err)
	}
	foreign, err := crypto.GenerateToken("user-1", "other-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired token", "Bearer " + expired},
		{"wrong secret", "Bearer " + foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			JWTAuth(testSecret)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Error("next handler called for rejected request")
			})).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body["message"] != "Authentication failed" {
				t.Errorf("message = %q", body["message"])
			}
		})
	}
}

func TestJWTAuth_MissingSecret(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	req.Header.Set("Authorization", "Bearer some.token.value")
	rec := httptest.NewRecorder()

	JWTAuth("")(http.NotFoundHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := UserIDFromContext(req.Context()); ok {
		t.Error("UserIDFromContext() ok = true on a bare context")
	}
	if id, ok := UserIDFromContext(WithUserID(req.Context(), "u")); !ok || id != "u" {
		t.Errorf("UserIDFromContext() = %q, %v", id, ok)
	}
}
