package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"userhub/internal/users"
)

// UserStore is the minimal user persistence surface the resolver needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	Create(ctx context.Context, user users.User) (users.User, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Resolver maps a verified external identity onto a local user record,
// creating one on first login.
type Resolver struct {
	store UserStore
	now   func() time.Time
}

// NewResolver creates a Resolver backed by the given user store.
func NewResolver(store UserStore) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// Resolve looks up the local user for the identity's email, creating a
// federated account if none exists. Existing records keep their stored
// profile; only the updated-at timestamp is touched. Concurrent first
// logins for the same email converge on one record: the store's
// uniqueness constraint turns the losing insert into a re-fetch.
func (r *Resolver) Resolve(ctx context.Context, identity ExternalIdentity) (*users.User, error) {
	existing, err := r.store.FindByEmail(ctx, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if existing != nil {
		if err := r.store.Touch(ctx, existing.ID, r.now()); err != nil {
			return nil, fmt.Errorf("touch user: %w", err)
		}
		return existing, nil
	}

	now := r.now()
	created, err := r.store.Create(ctx, users.User{
		ID:        uuid.New(),
		Email:     identity.Email,
		FirstName: identity.GivenName,
		LastName:  identity.FamilyName,
		Provider:  users.ProviderGoogle,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			winner, findErr := r.store.FindByEmail(ctx, identity.Email)
			if findErr != nil {
				return nil, fmt.Errorf("refetch user: %w", findErr)
			}
			if winner == nil {
				return nil, fmt.Errorf("refetch user: %w", err)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &created, nil
}
