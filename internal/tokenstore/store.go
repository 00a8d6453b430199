// Package tokenstore persists the session token in one of two tiers: a
// durable tier that survives restarts and a session-scoped tier that does not.
// At most one tier holds a token at any time.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
)

// Tier is a single storage location for the token.
type Tier interface {
	// Get returns the stored token and whether one exists.
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, token string) error
	// Delete removes the token. Deleting a missing token is not an error.
	Delete(ctx context.Context) error
}

// Store coordinates the durable and session-scoped tiers.
type Store struct {
	durable Tier
	session Tier
}

// New creates a store over the two tiers.
func New(durable, session Tier) *Store {
	return &Store{durable: durable, session: session}
}

// Save writes the token to exactly one tier and clears the other.
func (s *Store) Save(ctx context.Context, token string, durable bool) error {
	target, other := s.session, s.durable
	if durable {
		target, other = s.durable, s.session
	}
	if err := other.Delete(ctx); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	if err := target.Set(ctx, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Load returns the token from the durable tier, falling back to the session tier.
func (s *Store) Load(ctx context.Context) (string, bool, error) {
	for _, tier := range []Tier{s.durable, s.session} {
		token, ok, err := tier.Get(ctx)
		if err != nil {
			return "", false, fmt.Errorf("load token: %w", err)
		}
		if ok && token != "" {
			return token, true, nil
		}
	}
	return "", false, nil
}

// Clear removes the token from both tiers, attempting both even if one fails.
func (s *Store) Clear(ctx context.Context) error {
	return errors.Join(s.durable.Delete(ctx), s.session.Delete(ctx))
}
