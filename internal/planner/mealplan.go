package planner

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultTitle is used whenever a plan would otherwise have no title.
const DefaultTitle = "Meal Plan"

// Plan is the user's stored meal-planning profile.
type Plan struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	CaloriesPerDay      *float64 `json:"caloriesPerDay,omitempty"`
	Restrictions        []string `json:"restrictions"`
	DislikedIngredients []string `json:"dislikedIngredients,omitempty"`
	Notes               string   `json:"notes,omitempty"`
	CreatedAt           int64    `json:"createdAt"` // unix milliseconds
}

// Normalize fills in the invariants every stored plan must satisfy.
func (p Plan) Normalize() Plan {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.Restrictions == nil {
		p.Restrictions = []string{}
	}
	return p
}

// Edits carries the raw form fields a user changes while confirming a plan.
// List fields are comma separated.
type Edits struct {
	Title               string
	CaloriesPerDay      string
	Restrictions        string
	DislikedIngredients string
	Notes               string
}

// EditsFrom renders a plan back into its editable form.
func EditsFrom(p Plan) Edits {
	e := Edits{
		Title:               p.Title,
		Restrictions:        strings.Join(p.Restrictions, ", "),
		DislikedIngredients: strings.Join(p.DislikedIngredients, ", "),
		Notes:               p.Notes,
	}
	if p.CaloriesPerDay != nil {
		e.CaloriesPerDay = strconv.FormatFloat(*p.CaloriesPerDay, 'f', -1, 64)
	}
	return e
}

// ApplyEdits returns a copy of p with the edits applied. A blank title keeps
// the current one; a blank calorie field clears the target.
func (p Plan) ApplyEdits(e Edits) (Plan, error) {
	out := p
	if title := strings.TrimSpace(e.Title); title != "" {
		out.Title = title
	}

	out.CaloriesPerDay = nil
	if raw := strings.TrimSpace(e.CaloriesPerDay); raw != "" {
		cal, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(cal) || math.IsInf(cal, 0) {
			return Plan{}, fmt.Errorf("invalid calories per day %q", raw)
		}
		out.CaloriesPerDay = &cal
	}

	out.Restrictions = ParseList(e.Restrictions)
	out.DislikedIngredients = ParseList(e.DislikedIngredients)
	out.Notes = strings.TrimSpace(e.Notes)

	return out.Normalize(), nil
}

// ParseList splits a comma separated list, trimming entries and dropping
// empty ones. It never returns nil.
func ParseList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
