package credential

import (
	"context"
	"fmt"
	"strings"

	"meal-buddy/internal/store"
)

// Repository stores the single API key used for extraction calls.
type Repository struct {
	store *store.Store
}

// NewRepository creates a new credential repository.
func NewRepository(s *store.Store) *Repository {
	return &Repository{store: s}
}

// Get returns the stored key, or "" when none has been set.
func (r *Repository) Get(ctx context.Context) (string, error) {
	key, err := store.Load[string](ctx, r.store, store.APIKey)
	if err != nil {
		return "", fmt.Errorf("failed to get api key: %w", err)
	}
	return key, nil
}

// Set stores key, trimmed of surrounding whitespace.
func (r *Repository) Set(ctx context.Context, key string) error {
	if err := store.Save(ctx, r.store, store.APIKey, strings.TrimSpace(key)); err != nil {
		return fmt.Errorf("failed to set api key: %w", err)
	}
	return nil
}
