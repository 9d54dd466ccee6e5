package users

import (
	"time"

	"github.com/google/uuid"
)

// Provider tags how an account authenticates. Federated accounts carry
// no password material.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)

// User represents a user record. Email uniquely identifies at most one
// active (non-deleted) user.
type User struct {
	ID           uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	Provider     Provider
	PasswordHash string
	IsDeleted    bool
	DeletedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Filter narrows List results. String filters are case-insensitive
// substring matches.
type Filter struct {
	FirstName string
	LastName  string
	Email     string
	IsDeleted *bool
}
