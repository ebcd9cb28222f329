package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/planbox/internal/model"
)

const userColumns = "id, email, name, password_hash, created_at, updated_at"

// UserRepo is the credential store. Emails are compared exactly as
// persisted; the column uses a binary collation.
type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns the stored row. A taken email yields
// ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, email string, name *string, passwordHash string) (model.User, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, name, password_hash) VALUES (?, ?, ?, ?)",
		id, email, name, passwordHash)
	if err != nil {
		return model.User{}, classify(err, "user", "")
	}
	return r.GetByID(ctx, id)
}

// GetByEmail fetches a user by exact email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1", email)
	if err != nil {
		return model.User{}, classify(err, "user", "")
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id)
	if err != nil {
		return model.User{}, classify(err, "user", "")
	}
	return u, nil
}

// UpdateName sets the display name and returns the updated row.
func (r *UserRepo) UpdateName(ctx context.Context, id string, name *string) (model.User, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name = ?, updated_at = CURRENT_TIMESTAMP(3) WHERE id = ?", name, id)
	if err != nil {
		return model.User{}, classify(err, "user", "")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.User{}, notFound("user")
	}
	return r.GetByID(ctx, id)
}

// UpdatePasswordHash replaces the stored hash.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP(3) WHERE id = ?", passwordHash, id)
	if err != nil {
		return classify(err, "user", "")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("user")
	}
	return nil
}
