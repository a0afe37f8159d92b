package domain

import "time"

// User is an account that owns questions and tags. PasswordHash is a
// bcrypt hash and never leaves the storage/web boundary.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
