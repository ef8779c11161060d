package cli

import (
	"fmt"
	"io"
	"strings"

	"meal-buddy/internal/app"
	"meal-buddy/internal/meals"
	"meal-buddy/internal/shopping"

	"github.com/spf13/cobra"
)

func suggestCmd(svc func() *app.Services) *cobra.Command {
	var (
		mealType string
		count    int
	)
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Generate meal suggestions for the active plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := meals.ParseMealType(mealType)
			if err != nil {
				return err
			}
			batch, err := svc().App.GenerateSuggestions(cmd.Context(), t, count)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(batch) == 0 {
				fmt.Fprintln(out, "No usable suggestions came back. Try again.")
				return nil
			}
			printSuggestions(out, batch, shopping.SelectionState{})
			return nil
		},
	}
	cmd.Flags().StringVarP(&mealType, "type", "t", string(meals.Breakfast), "Meal type: breakfast, lunch or dinner")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of suggestions (default 5)")
	return cmd
}

func suggestionsCmd(svc func() *app.Services) *cobra.Command {
	var mealType string
	cmd := &cobra.Command{
		Use:   "suggestions",
		Short: "List stored suggestions for the active plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := svc().App
			plan, err := a.ActivePlan(ctx)
			if err != nil {
				return err
			}
			if plan == nil {
				return app.ErrNoActivePlan
			}

			list, err := a.Suggestions(ctx, plan.ID)
			if err != nil {
				return err
			}
			if mealType != "" {
				t, err := meals.ParseMealType(mealType)
				if err != nil {
					return err
				}
				list = meals.FilterByType(list, t)
			}

			state := shopping.NewSelectionState(plan.ID)
			if stored, err := a.GrocerySelections(ctx, plan.ID); err != nil {
				return err
			} else if stored != nil {
				state = *stored
			}

			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No suggestions yet. Run `meal-buddy suggest`.")
				return nil
			}
			printSuggestions(cmd.OutOrStdout(), list, state)
			return nil
		},
	}
	cmd.Flags().StringVarP(&mealType, "type", "t", "", "Only show one meal type")
	return cmd
}

func printSuggestions(w io.Writer, list []meals.Suggestion, state shopping.SelectionState) {
	for _, s := range list {
		box := "[ ]"
		if state.IsSelected(s.ID) {
			box = "[x]"
		}
		fmt.Fprintf(w, "%s %s  %s (%s)\n", box, s.ID, s.Title, s.Type)
		if s.Description != "" {
			fmt.Fprintf(w, "    %s\n", s.Description)
		}
		if len(s.Ingredients) > 0 {
			fmt.Fprintf(w, "    Ingredients: %s\n", strings.Join(s.Ingredients, ", "))
		}
		if len(s.Groceries) > 0 {
			fmt.Fprintf(w, "    Groceries:   %s\n", strings.Join(s.Groceries, ", "))
		}
	}
}

func groceriesCmd(svc func() *app.Services) *cobra.Command {
	var selectIDs, checkItems []string
	cmd := &cobra.Command{
		Use:   "groceries",
		Short: "Show the grocery list, optionally toggling meals or items first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := svc().App
			for _, id := range selectIDs {
				if _, err := a.ToggleSuggestion(ctx, id); err != nil {
					return err
				}
			}
			for _, item := range checkItems {
				if _, err := a.ToggleGrocery(ctx, item); err != nil {
					return err
				}
			}

			items, err := a.GroceryList(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Grocery list is empty. Select meals with --select <id>.")
				return nil
			}
			for _, it := range items {
				box := "[ ]"
				if it.Checked {
					box = "[x]"
				}
				fmt.Fprintf(out, "%s %s\n", box, it.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&selectIDs, "select", nil, "Toggle a suggestion id into or out of the list")
	cmd.Flags().StringArrayVar(&checkItems, "check", nil, "Toggle the checked flag of a grocery item")
	return cmd
}
