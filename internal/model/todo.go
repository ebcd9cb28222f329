package model

import "time"

// Todo is an item of a box's todo list. Ownership is transitive through
// BoxID.
type Todo struct {
	ID        string     `db:"id" json:"id"`
	BoxID     string     `db:"box_id" json:"boxId"`
	Todo      string     `db:"todo" json:"todo"`
	Done      bool       `db:"done" json:"done"`
	Deadline  *time.Time `db:"deadline" json:"deadline"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// TodoPatch lists the fields of a partial todo update. Nil means "leave
// unchanged"; ClearDeadline removes the deadline and wins over Deadline.
type TodoPatch struct {
	Todo          *string
	Done          *bool
	Deadline      *time.Time
	ClearDeadline bool
}

// Empty reports whether the patch changes nothing.
func (p TodoPatch) Empty() bool {
	return p.Todo == nil && p.Done == nil && p.Deadline == nil && !p.ClearDeadline
}
