package shopping

import "meal-buddy/internal/meals"

// SelectionState records, per meal plan, which suggestions feed the grocery
// list and which grocery items are checked off.
type SelectionState struct {
	MealPlanID            string          `json:"mealPlanId"`
	SelectedSuggestionIDs []string        `json:"selectedSuggestionIds"`
	CheckedGroceries      map[string]bool `json:"checkedGroceries"`
	UpdatedAt             int64           `json:"updatedAt"` // unix milliseconds
}

// NewSelectionState returns an empty state for a plan.
func NewSelectionState(planID string) SelectionState {
	return SelectionState{
		MealPlanID:            planID,
		SelectedSuggestionIDs: []string{},
		CheckedGroceries:      map[string]bool{},
	}
}

// IsSelected reports whether a suggestion is selected.
func (s SelectionState) IsSelected(suggestionID string) bool {
	for _, id := range s.SelectedSuggestionIDs {
		if id == suggestionID {
			return true
		}
	}
	return false
}

// Item is one derived grocery entry with its checked flag.
type Item struct {
	Name    string
	Checked bool
}

// BuildList derives the grocery list from the selected suggestions: every
// grocery item of every selected suggestion, each listed once, in order of
// first encounter.
func BuildList(suggestions []meals.Suggestion, selectedIDs []string) []string {
	selected := make(map[string]struct{}, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = struct{}{}
	}

	list := []string{}
	seen := make(map[string]struct{})
	for _, s := range suggestions {
		if _, ok := selected[s.ID]; !ok {
			continue
		}
		for _, g := range s.Groceries {
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			list = append(list, g)
		}
	}
	return list
}

// Items pairs the derived list with the state's checked flags.
func Items(suggestions []meals.Suggestion, state SelectionState) []Item {
	names := BuildList(suggestions, state.SelectedSuggestionIDs)
	items := make([]Item, 0, len(names))
	for _, name := range names {
		items = append(items, Item{Name: name, Checked: state.CheckedGroceries[name]})
	}
	return items
}
