package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/planbox/internal/handler"
)

// RegisterBoxes mounts the owner-scoped box, todo and note routes.
func RegisterBoxes(e *echo.Echo, b *handler.BoxHandler, t *handler.TodoHandler, n *handler.NoteHandler, mw Middleware) {
	g := e.Group("/v1/boxes", mw.protected()...)

	g.GET("", b.List())
	g.POST("", b.Create())
	g.GET("/:id", b.Get())
	g.PATCH("/:id", b.Rename())
	g.DELETE("/:id", b.Delete())

	g.GET("/:id/todos", t.List())
	g.POST("/:id/todos", t.Create())
	g.PUT("/:id/todos/:todoId", t.Update())
	g.DELETE("/:id/todos/:todoId", t.Delete())

	g.GET("/:id/note", n.Get())
	g.PUT("/:id/note", n.Save())
	g.POST("/:id/note", n.Save())
}
