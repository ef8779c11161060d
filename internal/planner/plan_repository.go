package planner

import (
	"context"
	"fmt"

	"meal-buddy/internal/store"
)

// PlanRepository stores plans and the active-plan pointer.
type PlanRepository struct {
	store *store.Store
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(s *store.Store) *PlanRepository {
	return &PlanRepository{store: s}
}

// List returns every stored plan, most recently added first.
func (r *PlanRepository) List(ctx context.Context) ([]Plan, error) {
	plans, err := store.Load[[]Plan](ctx, r.store, store.MealPlans)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal plans: %w", err)
	}
	return plans, nil
}

// Get returns the plan with the given id, or nil if there is none.
func (r *PlanRepository) Get(ctx context.Context, id string) (*Plan, error) {
	plans, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range plans {
		if plans[i].ID == id {
			return &plans[i], nil
		}
	}
	return nil, nil
}

// SaveAndActivate stores a plan and makes it the active one. A plan whose id
// is already stored is replaced in place; a new plan is prepended.
func (r *PlanRepository) SaveAndActivate(ctx context.Context, plan Plan) error {
	if plan.ID == "" {
		return fmt.Errorf("cannot save meal plan without an id")
	}
	plan = plan.Normalize()

	err := store.Update(ctx, r.store, store.MealPlans, func(plans []Plan) ([]Plan, error) {
		for i := range plans {
			if plans[i].ID == plan.ID {
				plans[i] = plan
				return plans, nil
			}
		}
		return append([]Plan{plan}, plans...), nil
	})
	if err != nil {
		return fmt.Errorf("failed to save meal plan %s: %w", plan.ID, err)
	}

	return r.SetActiveID(ctx, plan.ID)
}

// SetActiveID points the active-plan pointer at id without checking it exists.
func (r *PlanRepository) SetActiveID(ctx context.Context, id string) error {
	if err := store.Save(ctx, r.store, store.ActiveMealPlanID, id); err != nil {
		return fmt.Errorf("failed to set active meal plan: %w", err)
	}
	return nil
}

// ActiveID returns the active plan id, or "" when none is set.
func (r *PlanRepository) ActiveID(ctx context.Context) (string, error) {
	id, err := store.Load[string](ctx, r.store, store.ActiveMealPlanID)
	if err != nil {
		return "", fmt.Errorf("failed to get active meal plan id: %w", err)
	}
	return id, nil
}

// ActivePlan resolves the pointer. It returns nil when no plan is active or
// the pointer names a plan that is no longer stored.
func (r *PlanRepository) ActivePlan(ctx context.Context) (*Plan, error) {
	id, err := r.ActiveID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	return r.Get(ctx, id)
}
