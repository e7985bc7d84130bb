package model

import (
	"io"
	"time"
)

// Note is a user's note. JSON names match the web client's contract.
type Note struct {
	ID            string    `json:"_id"`
	UserID        string    `json:"userId"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Favorite      bool      `json:"favorite"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	AudioURL      string    `json:"audioUrl,omitempty"`
	Transcription string    `json:"transcription,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CreateNoteRequest carries the fields of a new note. ImageURL and AudioURL
// may reference external media; uploaded files take precedence.
type CreateNoteRequest struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	ImageURL      string `json:"imageUrl"`
	AudioURL      string `json:"audioUrl"`
	Transcription string `json:"transcription"`
}

// UpdateNoteRequest lists the fields a client may change. Nil means "leave
// unchanged"; an empty URL clears the attachment.
type UpdateNoteRequest struct {
	Title         *string `json:"title"`
	Content       *string `json:"content"`
	ImageURL      *string `json:"imageUrl"`
	AudioURL      *string `json:"audioUrl"`
	Transcription *string `json:"transcription"`
}

// MediaKind identifies which attachment slot an upload fills.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
)

// Attachment is an uploaded file on its way to media storage.
type Attachment struct {
	Kind        MediaKind
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MessageResponse is a bare {"message": ...} body.
type MessageResponse struct {
	Message string `json:"message"`
}
