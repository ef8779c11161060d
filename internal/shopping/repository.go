package shopping

import (
	"context"
	"fmt"
	"time"

	"meal-buddy/internal/store"
)

// Repository handles persistence of grocery selection state.
type Repository struct {
	store *store.Store
	now   func() time.Time
}

// NewRepository creates a new grocery selection repository.
func NewRepository(s *store.Store) *Repository {
	return &Repository{store: s, now: time.Now}
}

type selectionMap map[string]SelectionState

// Get retrieves the selection state for a meal plan, or nil if none is stored.
func (r *Repository) Get(ctx context.Context, mealPlanID string) (*SelectionState, error) {
	states, err := store.Load[selectionMap](ctx, r.store, store.GrocerySelections)
	if err != nil {
		return nil, fmt.Errorf("failed to get grocery selections for meal plan %s: %w", mealPlanID, err)
	}
	state, ok := states[mealPlanID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// Save stores state for its meal plan, replacing any previous state.
func (r *Repository) Save(ctx context.Context, state SelectionState) error {
	if state.MealPlanID == "" {
		return fmt.Errorf("cannot save grocery selections without a meal plan id")
	}
	if state.UpdatedAt == 0 {
		state.UpdatedAt = r.now().UnixMilli()
	}
	return r.update(ctx, state.MealPlanID, func(SelectionState) SelectionState { return state })
}

// ToggleSuggestion flips whether a suggestion is selected for a meal plan and
// returns the resulting state.
func (r *Repository) ToggleSuggestion(ctx context.Context, mealPlanID, suggestionID string) (SelectionState, error) {
	var result SelectionState
	err := r.update(ctx, mealPlanID, func(cur SelectionState) SelectionState {
		next := make([]string, 0, len(cur.SelectedSuggestionIDs)+1)
		found := false
		for _, id := range cur.SelectedSuggestionIDs {
			if id == suggestionID {
				found = true
				continue
			}
			next = append(next, id)
		}
		if !found {
			next = append(next, suggestionID)
		}
		cur.SelectedSuggestionIDs = next
		cur.UpdatedAt = r.now().UnixMilli()
		result = cur
		return cur
	})
	return result, err
}

// ToggleItem flips the checked flag of a grocery item and returns the
// resulting state.
func (r *Repository) ToggleItem(ctx context.Context, mealPlanID, item string) (SelectionState, error) {
	var result SelectionState
	err := r.update(ctx, mealPlanID, func(cur SelectionState) SelectionState {
		checked := make(map[string]bool, len(cur.CheckedGroceries)+1)
		for k, v := range cur.CheckedGroceries {
			checked[k] = v
		}
		checked[item] = !checked[item]
		cur.CheckedGroceries = checked
		cur.UpdatedAt = r.now().UnixMilli()
		result = cur
		return cur
	})
	return result, err
}

// update runs one locked read-modify-write cycle on a single plan's state.
func (r *Repository) update(ctx context.Context, mealPlanID string, fn func(SelectionState) SelectionState) error {
	err := store.Update(ctx, r.store, store.GrocerySelections, func(states selectionMap) (selectionMap, error) {
		if states == nil {
			states = selectionMap{}
		}
		cur, ok := states[mealPlanID]
		if !ok {
			cur = NewSelectionState(mealPlanID)
		}
		if cur.CheckedGroceries == nil {
			cur.CheckedGroceries = map[string]bool{}
		}
		if cur.SelectedSuggestionIDs == nil {
			cur.SelectedSuggestionIDs = []string{}
		}
		states[mealPlanID] = fn(cur)
		return states, nil
	})
	if err != nil {
		return fmt.Errorf("failed to save grocery selections for meal plan %s: %w", mealPlanID, err)
	}
	return nil
}
