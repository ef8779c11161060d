package extract

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"meal-buddy/internal/document"
	"meal-buddy/internal/llm"
	"meal-buddy/internal/meals"
	"meal-buddy/internal/planner"
	"meal-buddy/internal/shared"

	"github.com/google/uuid"
)

// DefaultSuggestionCount is used when GenerateSuggestions gets count <= 0.
const DefaultSuggestionCount = 5

// Agent names reported in AgentMeta and execution metrics.
const (
	PlanExtractorAgent       = "PlanExtractor"
	SuggestionGeneratorAgent = "SuggestionGenerator"
)

// ErrMissingCredential is returned before any network call when no API key
// has been stored.
var ErrMissingCredential = errors.New("api key not configured")

//go:embed prompts/*.md
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.md"))

// CredentialSource yields the stored API key, "" when there is none.
type CredentialSource interface {
	Get(ctx context.Context) (string, error)
}

// Pipeline turns documents and generation requests into domain records.
type Pipeline struct {
	handle *llm.Handle
	creds  CredentialSource
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewPipeline creates a pipeline that configures handle from creds on first use.
func NewPipeline(handle *llm.Handle, creds CredentialSource, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		handle: handle,
		creds:  creds,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// ExtractPlan asks the model to read a meal plan document. Whatever comes
// back, the result is a valid Plan with a fresh id and timestamp; only
// precondition and transport failures are returned as errors.
func (p *Pipeline) ExtractPlan(ctx context.Context, doc document.Document) (planner.Plan, shared.AgentMeta, error) {
	gen, err := p.generator(ctx)
	if err != nil {
		return planner.Plan{}, shared.AgentMeta{}, err
	}

	att, err := doc.Attachment()
	if err != nil {
		return planner.Plan{}, shared.AgentMeta{}, fmt.Errorf("failed to prepare document: %w", err)
	}

	system, err := render("plan_system.md", nil)
	if err != nil {
		return planner.Plan{}, shared.AgentMeta{}, err
	}
	user, err := render("plan_user.md", doc)
	if err != nil {
		return planner.Plan{}, shared.AgentMeta{}, err
	}

	start := time.Now()
	resp, err := gen.GenerateContent(ctx, llm.Request{System: system, User: user, Document: att, JSON: true})
	if err != nil {
		return planner.Plan{}, shared.AgentMeta{}, fmt.Errorf("failed to get LLM response: %w", err)
	}

	fields, ok := parsePlan(resp.Content)
	meta := shared.AgentMeta{
		AgentName: PlanExtractorAgent,
		Usage:     resp.Usage,
		Latency:   time.Since(start),
		Degraded:  !ok,
	}
	if !ok {
		p.logger.Warn("plan extraction response unusable, using defaults",
			"document", doc.Name,
			"response_bytes", len(resp.Content),
		)
	}

	plan := planner.Plan{
		ID:                  p.newID(),
		Title:               fields.Title,
		CaloriesPerDay:      fields.CaloriesPerDay,
		Restrictions:        fields.Restrictions,
		DislikedIngredients: fields.DislikedIngredients,
		Notes:               fields.Notes,
		CreatedAt:           p.now().UnixMilli(),
	}
	return plan.Normalize(), meta, nil
}

// GenerateSuggestions asks for count meals of mealType that fit plan. An
// unusable response yields an empty, non-nil slice. The result never holds
// more than count items.
func (p *Pipeline) GenerateSuggestions(ctx context.Context, plan planner.Plan, mealType meals.MealType, count int) ([]meals.Suggestion, shared.AgentMeta, error) {
	if !mealType.Valid() {
		return nil, shared.AgentMeta{}, fmt.Errorf("%w: %q", meals.ErrInvalidMealType, mealType)
	}
	if count <= 0 {
		count = DefaultSuggestionCount
	}

	gen, err := p.generator(ctx)
	if err != nil {
		return nil, shared.AgentMeta{}, err
	}

	planJSON, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return nil, shared.AgentMeta{}, fmt.Errorf("failed to encode plan: %w", err)
	}

	system, err := render("suggestions_system.md", map[string]any{"Count": count})
	if err != nil {
		return nil, shared.AgentMeta{}, err
	}
	user, err := render("suggestions_user.md", map[string]any{
		"PlanJSON": string(planJSON),
		"MealType": string(mealType),
	})
	if err != nil {
		return nil, shared.AgentMeta{}, err
	}

	start := time.Now()
	resp, err := gen.GenerateContent(ctx, llm.Request{System: system, User: user, JSON: true})
	if err != nil {
		return nil, shared.AgentMeta{}, fmt.Errorf("failed to get LLM response: %w", err)
	}

	items, ok := parseSuggestions(resp.Content, count)
	meta := shared.AgentMeta{
		AgentName: SuggestionGeneratorAgent,
		Usage:     resp.Usage,
		Latency:   time.Since(start),
		Degraded:  !ok,
	}
	if !ok {
		p.logger.Warn("suggestion response unusable, returning no meals",
			"plan_id", plan.ID,
			"meal_type", mealType,
			"response_bytes", len(resp.Content),
		)
	}

	createdAt := p.now().UnixMilli()
	out := make([]meals.Suggestion, 0, len(items))
	for _, item := range items {
		out = append(out, meals.Suggestion{
			ID:           p.newID(),
			MealPlanID:   plan.ID,
			Type:         mealType,
			Title:        item.Title,
			Description:  item.Description,
			Ingredients:  item.Ingredients,
			Instructions: item.Instructions,
			Groceries:    item.Groceries,
			CreatedAt:    createdAt,
		})
	}
	return out, meta, nil
}

func (p *Pipeline) generator(ctx context.Context) (llm.TextGenerator, error) {
	key, err := p.creds.Get(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrMissingCredential
	}
	return p.handle.Generator(ctx, key)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
