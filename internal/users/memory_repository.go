package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository stores users in an in-process map, ideal for local
// development or tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	data  map[uuid.UUID]User
	order []uuid.UUID
}

// NewInMemoryRepository constructs a repository seeded with optional initial users.
func NewInMemoryRepository(initial []User) *InMemoryRepository {
	data := make(map[uuid.UUID]User)
	order := make([]uuid.UUID, 0, len(initial))
	for _, user := range initial {
		data[user.ID] = user
		order = append(order, user.ID)
	}
	return &InMemoryRepository{data: data, order: order}
}

// List returns users matching the filter, in insertion order.
func (r *InMemoryRepository) List(_ context.Context, filter Filter) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]User, 0, len(r.order))
	for _, id := range r.order {
		user, ok := r.data[id]
		if !ok {
			continue
		}
		if filter.FirstName != "" && !containsFold(user.FirstName, filter.FirstName) {
			continue
		}
		if filter.LastName != "" && !containsFold(user.LastName, filter.LastName) {
			continue
		}
		if filter.Email != "" && !containsFold(user.Email, filter.Email) {
			continue
		}
		if filter.IsDeleted != nil && user.IsDeleted != *filter.IsDeleted {
			continue
		}
		out = append(out, user)
	}
	return out, nil
}

// FindByID returns a user by ID, or nil if absent.
func (r *InMemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// FindByEmail returns the active user holding the email, or nil.
func (r *InMemoryRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user := r.activeByEmailLocked(email)
	if user == nil {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

// Create inserts a new user. The duplicate check and insert happen
// under one lock, mirroring the database uniqueness constraint.
func (r *InMemoryRepository) Create(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !user.IsDeleted && r.activeByEmailLocked(user.Email) != nil {
		return User{}, ErrEmailTaken
	}
	r.data[user.ID] = user
	r.order = append(r.order, user.ID)
	return user, nil
}

// Update replaces an existing user record.
func (r *InMemoryRepository) Update(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[user.ID]; !ok {
		return User{}, ErrNotFound
	}
	if !user.IsDeleted {
		if existing := r.activeByEmailLocked(user.Email); existing != nil && existing.ID != user.ID {
			return User{}, ErrEmailTaken
		}
	}
	r.data[user.ID] = user
	return user, nil
}

// Touch bumps the updated-at timestamp of an existing record.
func (r *InMemoryRepository) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.data[id]
	if !ok {
		return nil
	}
	user.UpdatedAt = at
	r.data[id] = user
	return nil
}

func (r *InMemoryRepository) activeByEmailLocked(email string) *User {
	for _, id := range r.order {
		user, ok := r.data[id]
		if !ok || user.IsDeleted {
			continue
		}
		if strings.EqualFold(user.Email, email) {
			return &user
		}
	}
	return nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
