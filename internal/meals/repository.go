package meals

import (
	"context"
	"fmt"

	"meal-buddy/internal/store"
)

// Repository handles persistence of meal suggestions.
type Repository struct {
	store *store.Store
}

// NewRepository creates a new suggestion repository.
func NewRepository(s *store.Store) *Repository {
	return &Repository{store: s}
}

// List returns stored suggestions in store order, filtered by plan when
// planID is not empty.
func (r *Repository) List(ctx context.Context, planID string) ([]Suggestion, error) {
	all, err := store.Load[[]Suggestion](ctx, r.store, store.MealSuggestions)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal suggestions: %w", err)
	}
	if all == nil {
		all = []Suggestion{}
	}
	return FilterByPlan(all, planID), nil
}

// Append merges newOnes into the stored collection (see Merge). Appending
// nothing leaves the collection untouched.
func (r *Repository) Append(ctx context.Context, newOnes []Suggestion) error {
	if len(newOnes) == 0 {
		return nil
	}

	err := store.Update(ctx, r.store, store.MealSuggestions, func(existing []Suggestion) ([]Suggestion, error) {
		return Merge(newOnes, existing), nil
	})
	if err != nil {
		return fmt.Errorf("failed to append meal suggestions: %w", err)
	}
	return nil
}
