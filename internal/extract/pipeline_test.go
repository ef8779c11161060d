package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"meal-buddy/internal/document"
	"meal-buddy/internal/llm"
	"meal-buddy/internal/meals"
	"meal-buddy/internal/planner"
	"meal-buddy/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	content  string
	err      error
	requests []llm.Request
}

func (f *fakeGenerator) GenerateContent(_ context.Context, req llm.Request) (llm.ContentResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return llm.ContentResponse{}, f.err
	}
	return llm.ContentResponse{Content: f.content, Usage: shared.TokenUsage{Model: "fake", TotalTokens: 7}}, nil
}

type staticKey string

func (k staticKey) Get(context.Context) (string, error) { return string(k), nil }

func newTestPipeline(t *testing.T, key string, gen *fakeGenerator) *Pipeline {
	t.Helper()
	handle := llm.NewHandle(func(context.Context, string) (llm.TextGenerator, error) {
		return gen, nil
	})
	p := NewPipeline(handle, staticKey(key), nil)
	p.now = func() time.Time { return time.UnixMilli(1700000000000) }
	var n int
	p.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return p
}

func testDoc(t *testing.T) document.Document {
	t.Helper()
	doc, err := document.New("plan.pdf", "", []byte("%PDF-1.4 cutting plan"))
	require.NoError(t, err)
	return doc
}

func TestExtractPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("FullResponse", func(t *testing.T) {
		gen := &fakeGenerator{content: `{"title":" Cutting Plan ","caloriesPerDay":1800,
			"restrictions":["no dairy"," ",3],"dislikedIngredients":["olives"],"notes":"train 4x"}`}
		p := newTestPipeline(t, "k", gen)

		plan, meta, err := p.ExtractPlan(ctx, testDoc(t))
		require.NoError(t, err)

		assert.Equal(t, "id-1", plan.ID)
		assert.Equal(t, "Cutting Plan", plan.Title)
		require.NotNil(t, plan.CaloriesPerDay)
		assert.Equal(t, 1800.0, *plan.CaloriesPerDay)
		assert.Equal(t, []string{"no dairy"}, plan.Restrictions)
		assert.Equal(t, []string{"olives"}, plan.DislikedIngredients)
		assert.Equal(t, "train 4x", plan.Notes)
		assert.Equal(t, int64(1700000000000), plan.CreatedAt)

		assert.Equal(t, PlanExtractorAgent, meta.AgentName)
		assert.Equal(t, 7, meta.Usage.TotalTokens)
		assert.False(t, meta.Degraded)

		require.Len(t, gen.requests, 1)
		req := gen.requests[0]
		assert.True(t, req.JSON)
		assert.Contains(t, req.System, "caloriesPerDay")
		assert.Contains(t, req.User, `"plan.pdf"`)
		require.NotNil(t, req.Document)
		assert.Equal(t, "application/pdf", req.Document.MIMEType)
	})

	t.Run("NotJSONDegradesToDefaults", func(t *testing.T) {
		p := newTestPipeline(t, "k", &fakeGenerator{content: "not json"})

		plan, meta, err := p.ExtractPlan(ctx, testDoc(t))
		require.NoError(t, err)

		assert.Equal(t, planner.DefaultTitle, plan.Title)
		assert.NotNil(t, plan.Restrictions)
		assert.Empty(t, plan.Restrictions)
		assert.Nil(t, plan.CaloriesPerDay)
		assert.NotEmpty(t, plan.ID)
		assert.NotZero(t, plan.CreatedAt)
		assert.True(t, meta.Degraded)
	})

	t.Run("EmptyResponse", func(t *testing.T) {
		p := newTestPipeline(t, "k", &fakeGenerator{})
		plan, _, err := p.ExtractPlan(ctx, testDoc(t))
		require.NoError(t, err)
		assert.Equal(t, planner.DefaultTitle, plan.Title)
	})

	t.Run("MissingCredential", func(t *testing.T) {
		gen := &fakeGenerator{content: "{}"}
		p := newTestPipeline(t, "", gen)

		_, _, err := p.ExtractPlan(ctx, testDoc(t))
		assert.ErrorIs(t, err, ErrMissingCredential)
		assert.Empty(t, gen.requests)
	})

	t.Run("TransportErrorPropagates", func(t *testing.T) {
		boom := errors.New("connection reset")
		p := newTestPipeline(t, "k", &fakeGenerator{err: boom})
		_, _, err := p.ExtractPlan(ctx, testDoc(t))
		assert.ErrorIs(t, err, boom)
	})
}

func TestGenerateSuggestions(t *testing.T) {
	ctx := context.Background()
	plan := planner.Plan{ID: "p1", Title: "Cutting Plan", Restrictions: []string{"no dairy"}}

	t.Run("StampsAndTruncates", func(t *testing.T) {
		gen := &fakeGenerator{content: "```json\n" + `{"meals":[
			{"title":"Oats","ingredients":["50g oats"],"groceries":["oats"],"instructions":["Boil","Stir"]},
			"not a meal",
			{"title":"Eggs","description":"Scrambled","groceries":"eggs, butter"},
			{"title":"Extra"}
		]}` + "\n```"}
		p := newTestPipeline(t, "k", gen)

		got, meta, err := p.GenerateSuggestions(ctx, plan, meals.Breakfast, 3)
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, "id-1", got[0].ID)
		assert.Equal(t, "p1", got[0].MealPlanID)
		assert.Equal(t, meals.Breakfast, got[0].Type)
		assert.Equal(t, "Oats", got[0].Title)
		assert.Equal(t, "Boil\nStir", got[0].Instructions)
		assert.Equal(t, int64(1700000000000), got[0].CreatedAt)

		assert.Equal(t, "Eggs", got[1].Title)
		assert.Equal(t, "Scrambled", got[1].Description)
		assert.Equal(t, []string{"eggs", "butter"}, got[1].Groceries)
		assert.NotNil(t, got[1].Ingredients)
		assert.Empty(t, got[1].Ingredients)

		assert.Equal(t, SuggestionGeneratorAgent, meta.AgentName)
		assert.False(t, meta.Degraded)

		req := gen.requests[0]
		assert.Contains(t, req.System, "produce 3 concise")
		assert.Contains(t, req.User, `"title": "Cutting Plan"`)
		assert.Contains(t, req.User, "breakfast")
		assert.Nil(t, req.Document)
	})

	t.Run("DefaultCount", func(t *testing.T) {
		var b strings.Builder
		b.WriteString(`{"meals":[`)
		for i := range 8 {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, `{"title":"meal %d"}`, i)
		}
		b.WriteString(`]}`)

		p := newTestPipeline(t, "k", &fakeGenerator{content: b.String()})
		got, _, err := p.GenerateSuggestions(ctx, plan, meals.Dinner, 0)
		require.NoError(t, err)
		assert.Len(t, got, DefaultSuggestionCount)
	})

	t.Run("UnusableResponses", func(t *testing.T) {
		for _, body := range []string{"", "not json", `{"meals":"none"}`, `{"other":[]}`, `[1,2]`} {
			p := newTestPipeline(t, "k", &fakeGenerator{content: body})
			got, meta, err := p.GenerateSuggestions(ctx, plan, meals.Lunch, 5)
			require.NoError(t, err, body)
			assert.NotNil(t, got, body)
			assert.Empty(t, got, body)
			assert.True(t, meta.Degraded, body)
		}
	})

	t.Run("InvalidMealType", func(t *testing.T) {
		gen := &fakeGenerator{}
		p := newTestPipeline(t, "k", gen)
		_, _, err := p.GenerateSuggestions(ctx, plan, meals.MealType("brunch"), 5)
		assert.ErrorIs(t, err, meals.ErrInvalidMealType)
		assert.Empty(t, gen.requests)
	})

	t.Run("MissingCredential", func(t *testing.T) {
		gen := &fakeGenerator{}
		p := newTestPipeline(t, "", gen)
		_, _, err := p.GenerateSuggestions(ctx, plan, meals.Lunch, 5)
		assert.ErrorIs(t, err, ErrMissingCredential)
		assert.Empty(t, gen.requests)
	})
}

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		title    string
		calories *float64
		ok       bool
	}{
		{"WrappedInChatter", `Here you go: {"title":"Bulk"} hope it helps`, "Bulk", nil, true},
		{"BlankTitle", `{"title":"   "}`, planner.DefaultTitle, nil, true},
		{"CaloriesAsString", `{"caloriesPerDay":"2100"}`, planner.DefaultTitle, ptr(2100), true},
		{"NegativeCalories", `{"caloriesPerDay":-5}`, planner.DefaultTitle, nil, true},
		{"TitleWrongType", `{"title":42}`, planner.DefaultTitle, nil, true},
		{"Array", `["title"]`, planner.DefaultTitle, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, ok := parsePlan(tt.content)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.title, fields.Title)
			assert.Equal(t, tt.calories, fields.CaloriesPerDay)
			assert.NotNil(t, fields.Restrictions)
			assert.NotNil(t, fields.DislikedIngredients)
		})
	}
}

func ptr(f float64) *float64 { return &f }
