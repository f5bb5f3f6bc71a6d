package domain

import (
	"time"
)

// User represents a bank customer that owns accounts.
type User struct {
	CreatedAt    time.Time
	Username     string
	PasswordHash string
	ID           int64
}
