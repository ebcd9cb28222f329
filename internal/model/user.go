package model

import "time"

// User mirrors a row of the `users` table. PasswordHash never leaves the
// credential store boundary: it is excluded from JSON.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         *string   `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// DisplayName returns the name or an empty string.
func (u User) DisplayName() string {
	if u.Name == nil {
		return ""
	}
	return *u.Name
}
