package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/planbox/internal/model"
	"github.com/iliyamo/planbox/internal/queue"
)

// TodoStore is satisfied by *repository.TodoRepo.
type TodoStore interface {
	List(ctx context.Context, boxID, ownerID string) ([]model.Todo, error)
	Create(ctx context.Context, boxID, ownerID, text string, done bool, deadline *time.Time) (model.Todo, error)
	Update(ctx context.Context, id, boxID, ownerID string, patch model.TodoPatch) (model.Todo, error)
	Delete(ctx context.Context, id, boxID, ownerID string) error
}

// TodoHandler serves the todo list of a box.
type TodoHandler struct {
	Base
	Todos TodoStore
}

func NewTodoHandler(b Base, todos TodoStore) *TodoHandler {
	return &TodoHandler{Base: b, Todos: todos}
}

// optionalTime tells an explicit null apart from an absent field.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

type createTodoReq struct {
	BoxID    string     `param:"id" json:"-" validate:"required"`
	Todo     string     `json:"todo" validate:"notblank,max=100"`
	Done     bool       `json:"done"`
	Deadline *time.Time `json:"deadline"`
}

func (r *createTodoReq) normalize() { r.Todo = strings.TrimSpace(r.Todo) }

type updateTodoReq struct {
	BoxID    string       `param:"id" json:"-" validate:"required"`
	TodoID   string       `param:"todoId" json:"-" validate:"required"`
	Todo     *string      `json:"todo" validate:"omitnil,notblank,max=100"`
	Done     *bool        `json:"done"`
	Deadline optionalTime `json:"deadline"`
}

func (r *updateTodoReq) normalize() {
	if r.Todo != nil {
		s := strings.TrimSpace(*r.Todo)
		r.Todo = &s
	}
}

func (r *updateTodoReq) patch() model.TodoPatch {
	p := model.TodoPatch{Todo: r.Todo, Done: r.Done}
	if r.Deadline.Set {
		p.Deadline = r.Deadline.Value
		p.ClearDeadline = r.Deadline.Value == nil
	}
	return p
}

type todoRef struct {
	BoxID  string `param:"id" json:"-" validate:"required"`
	TodoID string `param:"todoId" json:"-" validate:"required"`
}

// List answers not-found for a box the caller does not own instead of an
// empty list.
func (h *TodoHandler) List() echo.HandlerFunc {
	return scoped(h.Log, http.StatusOK, func(r request[boxRef]) (any, error) {
		return h.Todos.List(r.Ctx, r.In.ID, r.Owner.ID)
	})
}

func (h *TodoHandler) Create() echo.HandlerFunc {
	return scoped(h.Log, http.StatusCreated, func(r request[createTodoReq]) (any, error) {
		t, err := h.Todos.Create(r.Ctx, r.In.BoxID, r.Owner.ID, r.In.Todo, r.In.Done, r.In.Deadline)
		if err != nil {
			return nil, err
		}
		h.emit(r.Ctx, queue.NewEvent(queue.TodoCreated, r.Owner.ID).WithBox(t.BoxID).WithTodo(t.ID))
		return t, nil
	})
}

func (h *TodoHandler) Update() echo.HandlerFunc {
	return scoped(h.Log, http.StatusOK, func(r request[updateTodoReq]) (any, error) {
		t, err := h.Todos.Update(r.Ctx, r.In.TodoID, r.In.BoxID, r.Owner.ID, r.In.patch())
		if err != nil {
			return nil, err
		}
		h.emit(r.Ctx, queue.NewEvent(queue.TodoUpdated, r.Owner.ID).WithBox(t.BoxID).WithTodo(t.ID))
		return t, nil
	})
}

func (h *TodoHandler) Delete() echo.HandlerFunc {
	return scoped(h.Log, http.StatusOK, func(r request[todoRef]) (any, error) {
		if err := h.Todos.Delete(r.Ctx, r.In.TodoID, r.In.BoxID, r.Owner.ID); err != nil {
			return nil, err
		}
		h.emit(r.Ctx, queue.NewEvent(queue.TodoDeleted, r.Owner.ID).WithBox(r.In.BoxID).WithTodo(r.In.TodoID))
		return message{Message: "Todo deleted"}, nil
	})
}
