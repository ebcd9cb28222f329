package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/planbox/internal/model"
	"github.com/iliyamo/planbox/internal/queue"
)

// BoxStore is satisfied by *repository.BoxRepo.
type BoxStore interface {
	List(ctx context.Context, ownerID string) ([]model.Box, error)
	Get(ctx context.Context, id, ownerID string) (model.Box, error)
	Create(ctx context.Context, ownerID, name string) (model.Box, error)
	Rename(ctx context.Context, id, ownerID, name string) (model.Box, error)
	Delete(ctx context.Context, id, ownerID string) (model.Box, error)
}

// BoxHandler serves the caller's boxes.
type BoxHandler struct {
	Base
	Boxes BoxStore
}

func NewBoxHandler(b Base, boxes BoxStore) *BoxHandler {
	return &BoxHandler{Base: b, Boxes: boxes}
}

type boxRef struct {
	ID string `param:"id" json:"-" validate:"required"`
}

type boxReq struct {
	Name string `json:"name" validate:"notblank,max=64"`
}

func (r *boxReq) normalize() { r.Name = strings.TrimSpace(r.Name) }

type renameBoxReq struct {
	ID   string `param:"id" json:"-" validate:"required"`
	Name string `json:"name" validate:"notblank,max=64"`
}

func (r *renameBoxReq) normalize() { r.Name = strings.TrimSpace(r.Name) }

func (h *BoxHandler) List() echo.HandlerFunc {
	return scoped(h.Log, http.StatusOK, func(r request[empty]) (any, error) {
		return h.Boxes.List(r.Ctx, r.Owner.ID)
	})
}

func (h *BoxHandler) Get() echo.HandlerFunc {
	return scoped(h.Log, http.StatusOK, func(r request[boxRef]) (any, error) {
		return h.Boxes.Get(r.Ctx, r.In.ID, r.Owner.ID)
	})
}

func (h *BoxHandler) Create() echo.HandlerFunc {
	return scoped(h.Log, http.StatusCreated, func(r request[boxReq]) (any, error) {
		b, err := h.Boxes.Create(r.Ctx, r.Owner.ID, r.In.Name)
		if err != nil {
			return nil, err
		}
		h.emit(r.Ctx, queue.NewEvent(queue.BoxCreated, r.Owner.ID).WithBox(b.ID))
		return b, nil
	})
}

func (h *BoxHandler) Rename() echo.HandlerFunc {
	return scoped(h.Log, http.StatusOK, func(r request[renameBoxReq]) (any, error) {
		b, err := h.Boxes.Rename(r.Ctx, r.In.ID, r.Owner.ID, r.In.Name)
		if err != nil {
			return nil, err
		}
		h.emit(r.Ctx, queue.NewEvent(queue.BoxRenamed, r.Owner.ID).WithBox(b.ID))
		return b, nil
	})
}

// Delete removes the box together with its todos and note.
func (h *BoxHandler) Delete() echo.HandlerFunc {
	return scoped(h.Log, http.StatusOK, func(r request[boxRef]) (any, error) {
		b, err := h.Boxes.Delete(r.Ctx, r.In.ID, r.Owner.ID)
		if err != nil {
			return nil, err
		}
		h.emit(r.Ctx, queue.NewEvent(queue.BoxDeleted, r.Owner.ID).WithBox(b.ID))
		return message{Message: "Box " + b.Name + " deleted"}, nil
	})
}
