package planner

import (
	"context"
	"reflect"
	"testing"

	"meal-buddy/internal/store"
)

func newTestRepo() (*PlanRepository, *store.MemoryBackend) {
	backend := store.NewMemoryBackend()
	return NewPlanRepository(store.New(backend, nil)), backend
}

func TestSaveAndActivate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo()

	p1 := Plan{ID: "p1", Title: "Cutting Plan", Restrictions: []string{}}
	p2 := Plan{ID: "p2", Title: "Bulking Plan"}

	t.Run("NewPlanIsPrepended", func(t *testing.T) {
		if err := repo.SaveAndActivate(ctx, p1); err != nil {
			t.Fatalf("SaveAndActivate failed: %v", err)
		}
		if err := repo.SaveAndActivate(ctx, p2); err != nil {
			t.Fatalf("SaveAndActivate failed: %v", err)
		}

		plans, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(plans) != 2 {
			t.Fatalf("Expected 2 plans, got %d", len(plans))
		}
		if plans[0].ID != "p2" || plans[1].ID != "p1" {
			t.Errorf("Expected order [p2 p1], got [%s %s]", plans[0].ID, plans[1].ID)
		}

		active, _ := repo.ActiveID(ctx)
		if active != "p2" {
			t.Errorf("Expected active plan 'p2', got '%s'", active)
		}
	})

	t.Run("ExistingPlanIsOverwrittenInPlace", func(t *testing.T) {
		updated := p1
		updated.Title = "Cutting Plan v2"
		if err := repo.SaveAndActivate(ctx, updated); err != nil {
			t.Fatalf("SaveAndActivate failed: %v", err)
		}

		plans, _ := repo.List(ctx)
		if len(plans) != 2 {
			t.Fatalf("Expected 2 plans after overwrite, got %d", len(plans))
		}
		if plans[1].Title != "Cutting Plan v2" {
			t.Errorf("Expected p1 updated in place, got %+v", plans)
		}

		active, err := repo.ActivePlan(ctx)
		if err != nil {
			t.Fatalf("ActivePlan failed: %v", err)
		}
		if active == nil || active.ID != "p1" {
			t.Errorf("Expected p1 to be active, got %+v", active)
		}
	})

	t.Run("EmptyTitleFallsBack", func(t *testing.T) {
		if err := repo.SaveAndActivate(ctx, Plan{ID: "p3", Title: "  "}); err != nil {
			t.Fatalf("SaveAndActivate failed: %v", err)
		}
		p, _ := repo.Get(ctx, "p3")
		if p == nil || p.Title != DefaultTitle {
			t.Errorf("Expected default title, got %+v", p)
		}
		if p.Restrictions == nil {
			t.Errorf("Expected non-nil restrictions")
		}
	})

	t.Run("MissingID", func(t *testing.T) {
		if err := repo.SaveAndActivate(ctx, Plan{Title: "x"}); err == nil {
			t.Fatal("Expected an error for a plan without id, got nil")
		}
	})
}

func TestActivePlan(t *testing.T) {
	ctx := context.Background()

	t.Run("NoPointer", func(t *testing.T) {
		repo, _ := newTestRepo()
		p, err := repo.ActivePlan(ctx)
		if err != nil || p != nil {
			t.Errorf("Expected (nil, nil), got (%+v, %v)", p, err)
		}
	})

	t.Run("DanglingPointer", func(t *testing.T) {
		repo, backend := newTestRepo()
		if err := repo.SaveAndActivate(ctx, Plan{ID: "p1", Title: "Plan"}); err != nil {
			t.Fatalf("SaveAndActivate failed: %v", err)
		}
		backend.Delete(store.MealPlans)

		p, err := repo.ActivePlan(ctx)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if p != nil {
			t.Errorf("Expected nil plan for dangling pointer, got %+v", p)
		}
	})

	t.Run("SetActiveIDDirectly", func(t *testing.T) {
		repo, _ := newTestRepo()
		_ = repo.SaveAndActivate(ctx, Plan{ID: "a", Title: "A"})
		_ = repo.SaveAndActivate(ctx, Plan{ID: "b", Title: "B"})

		if err := repo.SetActiveID(ctx, "a"); err != nil {
			t.Fatalf("SetActiveID failed: %v", err)
		}
		p, _ := repo.ActivePlan(ctx)
		if p == nil || p.Title != "A" {
			t.Errorf("Expected plan A active, got %+v", p)
		}
	})
}

func TestApplyEdits(t *testing.T) {
	cal := 1800.0
	base := Plan{ID: "p1", Title: "Original", CaloriesPerDay: &cal, Restrictions: []string{"vegan"}, CreatedAt: 42}

	tests := []struct {
		name    string
		edits   Edits
		want    Plan
		wantErr bool
	}{
		{
			name:  "BlankTitleKeepsOriginal",
			edits: Edits{Title: " ", Restrictions: "vegan, gluten free,,", Notes: "  "},
			want:  Plan{ID: "p1", Title: "Original", Restrictions: []string{"vegan", "gluten free"}, DislikedIngredients: []string{}, CreatedAt: 42},
		},
		{
			name:  "AllFields",
			edits: Edits{Title: "New", CaloriesPerDay: "2100", Restrictions: "keto", DislikedIngredients: "olives, anchovies", Notes: " low sodium "},
			want: Plan{ID: "p1", Title: "New", CaloriesPerDay: floatPtr(2100), Restrictions: []string{"keto"},
				DislikedIngredients: []string{"olives", "anchovies"}, Notes: "low sodium", CreatedAt: 42},
		},
		{
			name:    "BadCalories",
			edits:   Edits{CaloriesPerDay: "lots"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := base.ApplyEdits(tt.edits)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEdits failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ApplyEdits() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEditsFromRoundTrip(t *testing.T) {
	p := Plan{ID: "p1", Title: "T", CaloriesPerDay: floatPtr(1500.5), Restrictions: []string{"a", "b"}, DislikedIngredients: []string{"c"}, Notes: "n"}
	got, err := p.ApplyEdits(EditsFrom(p))
	if err != nil {
		t.Fatalf("ApplyEdits failed: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Errorf("Expected %+v, got %+v", p, got)
	}
}

func TestParseList(t *testing.T) {
	if got := ParseList(""); got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", got)
	}
	if got := ParseList(" eggs ,, oats,"); !reflect.DeepEqual(got, []string{"eggs", "oats"}) {
		t.Errorf("Unexpected result %#v", got)
	}
}

func floatPtr(f float64) *float64 { return &f }
