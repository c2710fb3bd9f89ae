package domain

import "time"

// User is an authenticated caller of the resolver API. The username doubles
// as the requester identity in lock and history records.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
