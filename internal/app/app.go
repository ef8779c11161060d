package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"meal-buddy/internal/credential"
	"meal-buddy/internal/document"
	"meal-buddy/internal/extract"
	"meal-buddy/internal/llm"
	"meal-buddy/internal/meals"
	"meal-buddy/internal/planner"
	"meal-buddy/internal/shared"
	"meal-buddy/internal/shopping"
	"meal-buddy/internal/store"
)

var (
	// ErrNoActivePlan is returned by flows that need a current plan.
	ErrNoActivePlan = errors.New("no active meal plan")
	// ErrSuggestionNotFound is returned when selecting a suggestion the
	// active plan does not own.
	ErrSuggestionNotFound = errors.New("suggestion not found for active plan")
)

// MetricsRecorder persists execution metadata for extraction calls.
type MetricsRecorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}

// App holds the application's dependencies.
type App struct {
	plans     *planner.PlanRepository
	meals     *meals.Repository
	groceries *shopping.Repository
	creds     *credential.Repository
	handle    *llm.Handle
	pipeline  *extract.Pipeline
	metrics   MetricsRecorder
	logger    *slog.Logger
}

// NewApp creates and initializes a new App instance. metrics may be nil.
func NewApp(s *store.Store, handle *llm.Handle, metrics MetricsRecorder, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	creds := credential.NewRepository(s)
	return &App{
		plans:     planner.NewPlanRepository(s),
		meals:     meals.NewRepository(s),
		groceries: shopping.NewRepository(s),
		creds:     creds,
		handle:    handle,
		pipeline:  extract.NewPipeline(handle, creds, logger),
		metrics:   metrics,
		logger:    logger,
	}
}

// Plans lists every stored plan, newest first.
func (a *App) Plans(ctx context.Context) ([]planner.Plan, error) {
	return a.plans.List(ctx)
}

// Plan returns the plan with id, or nil.
func (a *App) Plan(ctx context.Context, id string) (*planner.Plan, error) {
	return a.plans.Get(ctx, id)
}

// ActivePlan returns the current plan, or nil when there is none.
func (a *App) ActivePlan(ctx context.Context) (*planner.Plan, error) {
	return a.plans.ActivePlan(ctx)
}

// Suggestions lists stored suggestions for planID; "" lists all of them.
func (a *App) Suggestions(ctx context.Context, planID string) ([]meals.Suggestion, error) {
	return a.meals.List(ctx, planID)
}

// GrocerySelections returns the selection state for planID, or nil.
func (a *App) GrocerySelections(ctx context.Context, planID string) (*shopping.SelectionState, error) {
	return a.groceries.Get(ctx, planID)
}

// SaveAndActivate stores plan and makes it the active one.
func (a *App) SaveAndActivate(ctx context.Context, plan planner.Plan) error {
	return a.plans.SaveAndActivate(ctx, plan)
}

// SetActivePlan points the active plan at id without checking it exists.
func (a *App) SetActivePlan(ctx context.Context, id string) error {
	return a.plans.SetActiveID(ctx, id)
}

// AppendSuggestions merges suggestions into the stored collection.
func (a *App) AppendSuggestions(ctx context.Context, list []meals.Suggestion) error {
	return a.meals.Append(ctx, list)
}

// SaveGrocerySelections overwrites the selection state for its plan.
func (a *App) SaveGrocerySelections(ctx context.Context, state shopping.SelectionState) error {
	return a.groceries.Save(ctx, state)
}

// SetCredential stores the API key and reconfigures the model client with it.
func (a *App) SetCredential(ctx context.Context, key string) error {
	if err := a.creds.Set(ctx, key); err != nil {
		return err
	}
	stored, err := a.creds.Get(ctx)
	if err != nil || stored == "" {
		return err
	}
	if err := a.handle.Configure(ctx, stored); err != nil {
		return fmt.Errorf("failed to configure llm client: %w", err)
	}
	return nil
}

// SeedCredential stores key only when no credential has been set yet.
func (a *App) SeedCredential(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	current, err := a.creds.Get(ctx)
	if err != nil || current != "" {
		return err
	}
	a.logger.Info("seeding api key from environment")
	return a.creds.Set(ctx, key)
}

// HasCredential reports whether an API key is stored.
func (a *App) HasCredential(ctx context.Context) (bool, error) {
	key, err := a.creds.Get(ctx)
	return key != "", err
}

// ImportPlan extracts a plan from doc. The plan is not saved; callers show
// it for confirmation and then call ConfirmPlan.
func (a *App) ImportPlan(ctx context.Context, doc document.Document) (planner.Plan, error) {
	plan, meta, err := a.pipeline.ExtractPlan(ctx, doc)
	a.record(ctx, meta)
	if err != nil {
		return planner.Plan{}, err
	}
	a.logger.Info("plan extracted",
		"plan_id", plan.ID,
		"title", plan.Title,
		"degraded", meta.Degraded,
		"latency", meta.Latency,
	)
	return plan, nil
}

// ConfirmPlan applies the user's edits to an imported plan, saves it and
// makes it active.
func (a *App) ConfirmPlan(ctx context.Context, plan planner.Plan, edits planner.Edits) (planner.Plan, error) {
	edited, err := plan.ApplyEdits(edits)
	if err != nil {
		return planner.Plan{}, err
	}
	if err := a.plans.SaveAndActivate(ctx, edited); err != nil {
		return planner.Plan{}, err
	}
	return edited, nil
}

// GenerateSuggestions asks for count meals of mealType for the active plan,
// stores them and returns the new batch.
func (a *App) GenerateSuggestions(ctx context.Context, mealType meals.MealType, count int) ([]meals.Suggestion, error) {
	ok, err := a.HasCredential(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, extract.ErrMissingCredential
	}

	plan, err := a.requireActivePlan(ctx)
	if err != nil {
		return nil, err
	}

	batch, meta, err := a.pipeline.GenerateSuggestions(ctx, *plan, mealType, count)
	a.record(ctx, meta)
	if err != nil {
		return nil, err
	}

	if err := a.meals.Append(ctx, batch); err != nil {
		return nil, err
	}
	a.logger.Info("suggestions generated",
		"plan_id", plan.ID,
		"meal_type", mealType,
		"count", len(batch),
		"degraded", meta.Degraded,
	)
	return batch, nil
}

// GroceryList derives the grocery items of the active plan with their
// checked flags.
func (a *App) GroceryList(ctx context.Context) ([]shopping.Item, error) {
	plan, err := a.requireActivePlan(ctx)
	if err != nil {
		return nil, err
	}

	suggestions, err := a.meals.List(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	state, err := a.groceries.Get(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		empty := shopping.NewSelectionState(plan.ID)
		state = &empty
	}
	return shopping.Items(suggestions, *state), nil
}

// ToggleSuggestion selects or deselects one of the active plan's suggestions.
func (a *App) ToggleSuggestion(ctx context.Context, suggestionID string) (shopping.SelectionState, error) {
	plan, err := a.requireActivePlan(ctx)
	if err != nil {
		return shopping.SelectionState{}, err
	}

	suggestions, err := a.meals.List(ctx, plan.ID)
	if err != nil {
		return shopping.SelectionState{}, err
	}
	found := false
	for _, s := range suggestions {
		if s.ID == suggestionID {
			found = true
			break
		}
	}
	if !found {
		return shopping.SelectionState{}, fmt.Errorf("%w: %s", ErrSuggestionNotFound, suggestionID)
	}

	return a.groceries.ToggleSuggestion(ctx, plan.ID, suggestionID)
}

// ToggleGrocery flips the checked flag of a grocery item on the active plan.
func (a *App) ToggleGrocery(ctx context.Context, item string) (shopping.SelectionState, error) {
	plan, err := a.requireActivePlan(ctx)
	if err != nil {
		return shopping.SelectionState{}, err
	}
	return a.groceries.ToggleItem(ctx, plan.ID, item)
}

func (a *App) requireActivePlan(ctx context.Context) (*planner.Plan, error) {
	plan, err := a.plans.ActivePlan(ctx)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrNoActivePlan
	}
	return plan, nil
}

func (a *App) record(ctx context.Context, meta shared.AgentMeta) {
	if a.metrics == nil {
		return
	}
	if err := a.metrics.RecordMeta(ctx, meta); err != nil {
		a.logger.Warn("failed to record metrics", "agent", meta.AgentName, "error", err)
	}
}
