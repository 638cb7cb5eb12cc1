package model

import "time"

// User is an authentication account. Patrons link to a user via
// patrons.user_id; librarians are plain users with the LIBRARIAN role.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
