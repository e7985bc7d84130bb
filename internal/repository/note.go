package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/notesapp/notes-api/internal/model"
)

var ErrNoteNotFound = errors.New("note not found")

const noteColumns = `id, user_id, title, content, favorite, image_url, audio_url, transcription, created_at, updated_at`

// NoteRepository handles note persistence. Every single-note query is scoped
// by both note ID and owner ID.
type NoteRepository struct {
	db *sql.DB
}

// NewNoteRepository creates a new NoteRepository.
func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create inserts a note, assigning its ID and timestamps.
func (r *NoteRepository) Create(ctx context.Context, note *model.Note) error {
	query := `INSERT INTO notes (` + noteColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, err := r.db.ExecContext(ctx, query,
		id,
		note.UserID,
		note.Title,
		note.Content,
		note.Favorite,
		nullString(note.ImageURL),
		nullString(note.AudioURL),
		nullString(note.Transcription),
		now,
		now,
	)
	if err != nil {
		return err
	}

	note.ID = id
	note.CreatedAt = now
	note.UpdatedAt = now
	return nil
}

// ListByOwner retrieves all notes for a user, newest first.
func (r *NoteRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE user_id = ? ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []model.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}

	return notes, rows.Err()
}

// GetByID retrieves a note owned by ownerID.
func (r *NoteRepository) GetByID(ctx context.Context, ownerID, id string) (*model.Note, error) {
	return getNote(ctx, r.db, ownerID, id, false)
}

// Update locks the owner's note, lets apply mutate it and writes back the
// mutable columns in the same transaction.
func (r *NoteRepository) Update(ctx context.Context, ownerID, id string, apply func(*model.Note) error) (*model.Note, error) {
	query := `UPDATE notes SET title = ?, content = ?, image_url = ?, audio_url = ?, transcription = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`

	var updated *model.Note
	err := withTx(ctx, r.db, func(tx DBTX) error {
		note, err := getNote(ctx, tx, ownerID, id, true)
		if err != nil {
			return err
		}

		if err := apply(note); err != nil {
			return err
		}
		note.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

		_, err = tx.ExecContext(ctx, query,
			note.Title,
			note.Content,
			nullString(note.ImageURL),
			nullString(note.AudioURL),
			nullString(note.Transcription),
			note.UpdatedAt,
			note.ID,
			note.UserID,
		)
		if err != nil {
			return err
		}

		updated = note
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// ToggleFavorite flips the favorite flag of the owner's note and returns it.
func (r *NoteRepository) ToggleFavorite(ctx context.Context, ownerID, id string) (*model.Note, error) {
	query := `UPDATE notes SET favorite = NOT favorite, updated_at = ? WHERE id = ? AND user_id = ?`

	var toggled *model.Note
	err := withTx(ctx, r.db, func(tx DBTX) error {
		now := time.Now().UTC().Truncate(time.Millisecond)

		result, err := tx.ExecContext(ctx, query, now, id, ownerID)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return ErrNoteNotFound
		}

		toggled, err = getNote(ctx, tx, ownerID, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	return toggled, nil
}

// Delete permanently removes the owner's note and returns what was deleted.
func (r *NoteRepository) Delete(ctx context.Context, ownerID, id string) (*model.Note, error) {
	query := `DELETE FROM notes WHERE id = ? AND user_id = ?`

	var deleted *model.Note
	err := withTx(ctx, r.db, func(tx DBTX) error {
		note, err := getNote(ctx, tx, ownerID, id, true)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, query, id, ownerID); err != nil {
			return err
		}

		deleted = note
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}

func getNote(ctx context.Context, db DBTX, ownerID, id string, forUpdate bool) (*model.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = ? AND user_id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	note, err := scanNote(db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}

	return note, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*model.Note, error) {
	var (
		n                                 model.Note
		imageURL, audioURL, transcription sql.NullString
	)

	err := row.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Content, &n.Favorite,
		&imageURL, &audioURL, &transcription,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.ImageURL = imageURL.String
	n.AudioURL = audioURL.String
	n.Transcription = transcription.String
	return &n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
