package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxNameLength  = 100
	maxEmailLength = 255
)

var (
	// ErrValidation wraps input validation failures.
	ErrValidation = errors.New("validation failed")
	// ErrUserDeleted is returned when mutating a soft-deleted record.
	ErrUserDeleted = errors.New("user is deleted")
	// ErrInvalidLogin covers unknown email, federated accounts, and
	// password mismatches on the password login path. Deliberately one
	// error so callers cannot probe which accounts exist.
	ErrInvalidLogin = errors.New("invalid email or password")
)

// RegisterInput carries the fields for creating a password-based account.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Password  *string
}

// Service orchestrates validation and persistence for user records.
type Service struct {
	repo Repository
}

// NewService wires a Service with the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns users matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]User, error) {
	return s.repo.List(ctx, filter)
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if user == nil {
		return User{}, ErrNotFound
	}
	return *user, nil
}

// Register creates a password-based account. The password is hashed
// here; raw password material never reaches the repository.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	email := strings.TrimSpace(input.Email)

	if firstName == "" {
		return User{}, fmt.Errorf("%w: first_name is required", ErrValidation)
	}
	if err := validateName(firstName); err != nil {
		return User{}, err
	}
	if err := validateName(lastName); err != nil {
		return User{}, err
	}
	if err := validateEmail(email); err != nil {
		return User{}, err
	}
	if input.Password == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		Provider:     ProviderLocal,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return s.repo.Create(ctx, user)
}

// Update applies a partial update to an existing active user.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (User, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if existing == nil {
		return User{}, ErrNotFound
	}
	if existing.IsDeleted {
		return User{}, ErrUserDeleted
	}

	user := *existing
	if input.FirstName != nil {
		firstName := strings.TrimSpace(*input.FirstName)
		if firstName == "" {
			return User{}, fmt.Errorf("%w: first_name cannot be empty", ErrValidation)
		}
		if err := validateName(firstName); err != nil {
			return User{}, err
		}
		user.FirstName = firstName
	}
	if input.LastName != nil {
		lastName := strings.TrimSpace(*input.LastName)
		if err := validateName(lastName); err != nil {
			return User{}, err
		}
		user.LastName = lastName
	}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if err := validateEmail(email); err != nil {
			return User{}, err
		}
		user.Email = email
	}
	if input.Password != nil {
		if *input.Password == "" {
			return User{}, fmt.Errorf("%w: password cannot be empty", ErrValidation)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	user.UpdatedAt = time.Now().UTC()
	return s.repo.Update(ctx, user)
}

// Delete soft-deletes a user. Deleting twice is an error.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	if existing.IsDeleted {
		return ErrUserDeleted
	}

	now := time.Now().UTC()
	user := *existing
	user.IsDeleted = true
	user.DeletedAt = &now
	user.UpdatedAt = now

	_, err = s.repo.Update(ctx, user)
	return err
}

// Authenticate verifies a local account's password and returns the
// user. Federated accounts cannot log in with a password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if user == nil || user.Provider != ProviderLocal {
		return nil, ErrInvalidLogin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidLogin
	}
	return user, nil
}

func validateName(name string) error {
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrValidation, maxNameLength)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if len(email) > maxEmailLength {
		return fmt.Errorf("%w: email exceeds %d characters", ErrValidation, maxEmailLength)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return nil
}
