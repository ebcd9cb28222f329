// Package queue carries activity events over RabbitMQ: a publisher used by
// the HTTP handlers and a consumer that appends them to an activity log.
package queue

import (
	"fmt"
	"strings"
	"time"
)

// Type names what happened.
type Type string

const (
	UserSignedUp        Type = "user.signed_up"
	UserPasswordChanged Type = "user.password_changed"
	BoxCreated          Type = "box.created"
	BoxRenamed          Type = "box.renamed"
	BoxDeleted          Type = "box.deleted"
	TodoCreated         Type = "todo.created"
	TodoUpdated         Type = "todo.updated"
	TodoDeleted         Type = "todo.deleted"
	NoteSaved           Type = "note.saved"
)

// Event is the message body. Ids that do not apply are left empty.
type Event struct {
	Type       Type      `json:"type"`
	UserID     string    `json:"user_id"`
	BoxID      string    `json:"box_id,omitempty"`
	TodoID     string    `json:"todo_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps an event with the current UTC time.
func NewEvent(t Type, userID string) Event {
	return Event{Type: t, UserID: userID, OccurredAt: time.Now().UTC()}
}

func (e Event) WithBox(id string) Event  { e.BoxID = id; return e }
func (e Event) WithTodo(id string) Event { e.TodoID = id; return e }

// Line renders the event as one line of the activity log.
func (e Event) Line() string {
	parts := []string{
		fmt.Sprintf("[%s] %s", e.OccurredAt.UTC().Format(time.RFC3339), e.Type),
		"user_id=" + e.UserID,
	}
	if e.BoxID != "" {
		parts = append(parts, "box_id="+e.BoxID)
	}
	if e.TodoID != "" {
		parts = append(parts, "todo_id="+e.TodoID)
	}
	return strings.Join(parts, " | ") + "\n"
}
