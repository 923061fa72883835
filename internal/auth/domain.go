package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is an account allowed to operate on a single company's data.
type User struct {
	ID           uuid.UUID
	CompanyID    uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
