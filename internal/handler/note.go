package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/planbox/internal/model"
	"github.com/iliyamo/planbox/internal/queue"
)

// NoteStore is satisfied by *repository.NoteRepo.
type NoteStore interface {
	Get(ctx context.Context, boxID, ownerID string) (model.Note, error)
	Save(ctx context.Context, boxID, ownerID, content string) (model.Note, error)
}

// HTMLSanitizer is satisfied by *validation.Sanitizer.
type HTMLSanitizer interface {
	HTML(in string) string
}

// NoteHandler serves the rich-text note of a box.
type NoteHandler struct {
	Base
	Notes     NoteStore
	Sanitizer HTMLSanitizer
}

func NewNoteHandler(b Base, notes NoteStore, s HTMLSanitizer) *NoteHandler {
	return &NoteHandler{Base: b, Notes: notes, Sanitizer: s}
}

type noteReq struct {
	BoxID   string `param:"id" json:"-" validate:"required"`
	Content string `json:"content" validate:"max=1000000"`
}

// Get returns an empty note when the box has none yet.
func (h *NoteHandler) Get() echo.HandlerFunc {
	return scoped(h.Log, http.StatusOK, func(r request[boxRef]) (any, error) {
		return h.Notes.Get(r.Ctx, r.In.ID, r.Owner.ID)
	})
}

// Save stores the sanitized content, creating the note on first write.
func (h *NoteHandler) Save() echo.HandlerFunc {
	return scoped(h.Log, http.StatusOK, func(r request[noteReq]) (any, error) {
		n, err := h.Notes.Save(r.Ctx, r.In.BoxID, r.Owner.ID, h.Sanitizer.HTML(r.In.Content))
		if err != nil {
			return nil, err
		}
		h.emit(r.Ctx, queue.NewEvent(queue.NoteSaved, r.Owner.ID).WithBox(n.BoxID))
		return n, nil
	})
}
