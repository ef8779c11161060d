package meals

import (
	"errors"
	"fmt"
	"strings"
)

// MealType is the slot a suggestion is meant for.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
)

// MealTypes lists every valid meal type in display order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner}

// ErrInvalidMealType is returned for anything outside MealTypes.
var ErrInvalidMealType = errors.New("invalid meal type")

// ParseMealType accepts a meal type name in any case.
func ParseMealType(s string) (MealType, error) {
	t := MealType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMealType, s)
	}
	return t, nil
}

// Valid reports whether t is one of MealTypes.
func (t MealType) Valid() bool {
	switch t {
	case Breakfast, Lunch, Dinner:
		return true
	}
	return false
}

// Suggestion is one proposed meal for a plan and meal slot.
type Suggestion struct {
	ID           string   `json:"id"`
	MealPlanID   string   `json:"mealPlanId"`
	Type         MealType `json:"type"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions,omitempty"`
	Groceries    []string `json:"groceries"`
	CreatedAt    int64    `json:"createdAt"` // unix milliseconds
}

// Merge combines freshly generated suggestions with stored ones. New entries
// come first and the first occurrence of an id wins, so a new suggestion
// replaces a stored one with the same id.
func Merge(newOnes, existing []Suggestion) []Suggestion {
	merged := make([]Suggestion, 0, len(newOnes)+len(existing))
	seen := make(map[string]struct{}, len(newOnes)+len(existing))

	for _, list := range [][]Suggestion{newOnes, existing} {
		for _, s := range list {
			if _, dup := seen[s.ID]; dup {
				continue
			}
			seen[s.ID] = struct{}{}
			merged = append(merged, s)
		}
	}
	return merged
}

// FilterByPlan keeps suggestions owned by planID. An empty planID keeps all.
func FilterByPlan(list []Suggestion, planID string) []Suggestion {
	if planID == "" {
		return list
	}
	out := []Suggestion{}
	for _, s := range list {
		if s.MealPlanID == planID {
			out = append(out, s)
		}
	}
	return out
}

// FilterByType keeps suggestions for a single meal slot.
func FilterByType(list []Suggestion, t MealType) []Suggestion {
	out := []Suggestion{}
	for _, s := range list {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}
