package model

import "time"

// Note is the rich-text note of a box; a box has at most one. Content is
// stored already sanitized.
type Note struct {
	ID        string    `db:"id" json:"id"`
	BoxID     string    `db:"box_id" json:"boxId"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
