package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmailTaken is returned by Create and Update when another active
	// user already holds the email. Callers racing on first login treat
	// it as "already exists, re-fetch".
	ErrEmailTaken = errors.New("email already exists")
	// ErrNotFound is returned when an operation targets a user that
	// does not exist.
	ErrNotFound = errors.New("user not found")
)

// Repository defines the persistence interface for user records.
// Lookups return (nil, nil) when no record matches.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	// FindByEmail matches active users only.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// Create inserts atomically with respect to the email uniqueness
	// constraint; there is no check-then-insert window.
	Create(ctx context.Context, user User) (User, error)
	Update(ctx context.Context, user User) (User, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}
