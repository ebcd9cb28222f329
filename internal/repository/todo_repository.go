package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/planbox/internal/model"
)

const todoColumns = "t.id, t.box_id, t.todo, t.done, t.deadline, t.created_at, t.updated_at"

// TodoRepo stores todos. Ownership is resolved through the parent box in
// the same statement that reads or writes the todo.
type TodoRepo struct{ DB *sqlx.DB }

func NewTodoRepo(db *sqlx.DB) *TodoRepo { return &TodoRepo{DB: db} }

// List returns the todos of an owned box. A foreign or missing box is
// reported as not found rather than as an empty list.
func (r *TodoRepo) List(ctx context.Context, boxID, ownerID string) ([]model.Todo, error) {
	if err := ownsBox(ctx, r.DB, boxID, ownerID); err != nil {
		return nil, err
	}
	todos := []model.Todo{}
	err := r.DB.SelectContext(ctx, &todos,
		"SELECT "+todoColumns+" FROM todos t JOIN boxes b ON b.id = t.box_id"+
			" WHERE t.box_id = ? AND b.user_id = ? ORDER BY t.updated_at DESC, t.id",
		boxID, ownerID)
	if err != nil {
		return nil, classify(err, "todo", "box")
	}
	return todos, nil
}

// Get returns one todo of an owned box.
func (r *TodoRepo) Get(ctx context.Context, id, boxID, ownerID string) (model.Todo, error) {
	var t model.Todo
	err := r.DB.GetContext(ctx, &t,
		"SELECT "+todoColumns+" FROM todos t JOIN boxes b ON b.id = t.box_id"+
			" WHERE t.id = ? AND t.box_id = ? AND b.user_id = ? LIMIT 1",
		id, boxID, ownerID)
	if err != nil {
		return model.Todo{}, classify(err, "todo", "box")
	}
	return t, nil
}

// Create inserts a todo only when the box exists and is owned; the check
// and the insert are one statement.
func (r *TodoRepo) Create(ctx context.Context, boxID, ownerID, text string, done bool, deadline *time.Time) (model.Todo, error) {
	id := uuid.NewString()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO todos (id, box_id, todo, done, deadline)"+
			" SELECT ?, b.id, ?, ?, ? FROM boxes b WHERE b.id = ? AND b.user_id = ?",
		id, text, done, deadline, boxID, ownerID)
	if err != nil {
		return model.Todo{}, classify(err, "todo", "box")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Todo{}, notFound("box")
	}
	return r.Get(ctx, id, boxID, ownerID)
}

// Update applies the non-nil fields of patch. An empty patch only bumps
// updated_at.
func (r *TodoRepo) Update(ctx context.Context, id, boxID, ownerID string, patch model.TodoPatch) (model.Todo, error) {
	if patch.Empty() {
		return r.Get(ctx, id, boxID, ownerID)
	}
	q := sq.Update("todos t JOIN boxes b ON b.id = t.box_id")
	if patch.Todo != nil {
		q = q.Set("t.todo", *patch.Todo)
	}
	if patch.Done != nil {
		q = q.Set("t.done", *patch.Done)
	}
	switch {
	case patch.ClearDeadline:
		q = q.Set("t.deadline", nil)
	case patch.Deadline != nil:
		q = q.Set("t.deadline", *patch.Deadline)
	}
	q = q.Set("t.updated_at", sq.Expr("CURRENT_TIMESTAMP(3)")).
		Where("t.id = ? AND t.box_id = ? AND b.user_id = ?", id, boxID, ownerID)

	query, args, err := q.ToSql()
	if err != nil {
		return model.Todo{}, err
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return model.Todo{}, classify(err, "todo", "box")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Todo{}, notFound("todo")
	}
	return r.Get(ctx, id, boxID, ownerID)
}

// Delete removes one todo of an owned box.
func (r *TodoRepo) Delete(ctx context.Context, id, boxID, ownerID string) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE t FROM todos t JOIN boxes b ON b.id = t.box_id"+
			" WHERE t.id = ? AND t.box_id = ? AND b.user_id = ?",
		id, boxID, ownerID)
	if err != nil {
		return classify(err, "todo", "box")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("todo")
	}
	return nil
}
