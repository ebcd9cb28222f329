package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/planbox/internal/model"
)

const boxColumns = "id, user_id, name, created_at, updated_at"

// BoxRepo stores boxes. Every method takes the owner id and matches on it,
// so a box owned by someone else is indistinguishable from a missing one.
type BoxRepo struct{ DB *sqlx.DB }

func NewBoxRepo(db *sqlx.DB) *BoxRepo { return &BoxRepo{DB: db} }

// List returns the owner's boxes, most recently updated first.
func (r *BoxRepo) List(ctx context.Context, ownerID string) ([]model.Box, error) {
	boxes := []model.Box{}
	err := r.DB.SelectContext(ctx, &boxes,
		"SELECT "+boxColumns+" FROM boxes WHERE user_id = ? ORDER BY updated_at DESC, id", ownerID)
	if err != nil {
		return nil, classify(err, "box", "")
	}
	return boxes, nil
}

// Get returns a single box of the owner.
func (r *BoxRepo) Get(ctx context.Context, id, ownerID string) (model.Box, error) {
	var b model.Box
	err := r.DB.GetContext(ctx, &b,
		"SELECT "+boxColumns+" FROM boxes WHERE id = ? AND user_id = ? LIMIT 1", id, ownerID)
	if err != nil {
		return model.Box{}, classify(err, "box", "")
	}
	return b, nil
}

// Create inserts a box for the owner. Names are unique per owner.
func (r *BoxRepo) Create(ctx context.Context, ownerID, name string) (model.Box, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO boxes (id, user_id, name) VALUES (?, ?, ?)", id, ownerID, name)
	if err != nil {
		return model.Box{}, classify(err, "box", "user")
	}
	return r.Get(ctx, id, ownerID)
}

// Rename changes the name of an owned box.
func (r *BoxRepo) Rename(ctx context.Context, id, ownerID, name string) (model.Box, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE boxes SET name = ?, updated_at = CURRENT_TIMESTAMP(3) WHERE id = ? AND user_id = ?",
		name, id, ownerID)
	if err != nil {
		return model.Box{}, classify(err, "box", "")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Box{}, notFound("box")
	}
	return r.Get(ctx, id, ownerID)
}

// Delete removes an owned box and returns it as it was. Todos and the note
// go with it through the cascading foreign keys.
func (r *BoxRepo) Delete(ctx context.Context, id, ownerID string) (box model.Box, err error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return model.Box{}, classify(err, "box", "")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = tx.GetContext(ctx, &box,
		"SELECT "+boxColumns+" FROM boxes WHERE id = ? AND user_id = ? FOR UPDATE", id, ownerID)
	if err != nil {
		return model.Box{}, classify(err, "box", "")
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM boxes WHERE id = ? AND user_id = ?", id, ownerID); err != nil {
		return model.Box{}, classify(err, "box", "")
	}
	return box, nil
}

// ownsBox reports ErrNotFound for the box unless it exists and belongs to ownerID.
func ownsBox(ctx context.Context, q sqlx.QueryerContext, boxID, ownerID string) error {
	var one int
	err := sqlx.GetContext(ctx, q, &one,
		"SELECT 1 FROM boxes WHERE id = ? AND user_id = ? LIMIT 1", boxID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("box")
	}
	if err != nil {
		return classify(err, "box", "")
	}
	return nil
}
