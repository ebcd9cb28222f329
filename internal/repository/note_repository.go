package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/planbox/internal/model"
)

const noteColumns = "n.id, n.box_id, n.content, n.created_at, n.updated_at"

// NoteRepo stores the single note attached to a box.
type NoteRepo struct{ DB *sqlx.DB }

func NewNoteRepo(db *sqlx.DB) *NoteRepo { return &NoteRepo{DB: db} }

// Get returns the note of an owned box. A box without a note yields an
// empty note rather than an error.
func (r *NoteRepo) Get(ctx context.Context, boxID, ownerID string) (model.Note, error) {
	if err := ownsBox(ctx, r.DB, boxID, ownerID); err != nil {
		return model.Note{}, err
	}
	n, err := r.get(ctx, boxID, ownerID)
	if errors.Is(err, ErrNotFound) {
		return model.Note{BoxID: boxID}, nil
	}
	return n, err
}

// Save creates or replaces the note content for an owned box.
func (r *NoteRepo) Save(ctx context.Context, boxID, ownerID, content string) (model.Note, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO notes (id, box_id, content)"+
			" SELECT ?, b.id, ? FROM boxes b WHERE b.id = ? AND b.user_id = ?"+
			" ON DUPLICATE KEY UPDATE notes.content = VALUES(content), notes.updated_at = CURRENT_TIMESTAMP(3)",
		uuid.NewString(), content, boxID, ownerID)
	if err != nil {
		return model.Note{}, classify(err, "note", "box")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Note{}, notFound("box")
	}
	return r.get(ctx, boxID, ownerID)
}

func (r *NoteRepo) get(ctx context.Context, boxID, ownerID string) (model.Note, error) {
	var n model.Note
	err := r.DB.GetContext(ctx, &n,
		"SELECT "+noteColumns+" FROM notes n JOIN boxes b ON b.id = n.box_id"+
			" WHERE n.box_id = ? AND b.user_id = ? LIMIT 1", boxID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Note{}, notFound("note")
	}
	if err != nil {
		return model.Note{}, classify(err, "note", "box")
	}
	return n, nil
}
