package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"meal-buddy/internal/app"
	"meal-buddy/internal/document"
	"meal-buddy/internal/planner"

	"github.com/spf13/cobra"
)

func planCmd(svc func() *app.Services) *cobra.Command {
	plan := &cobra.Command{
		Use:   "plan",
		Short: "Import, list and switch meal plans",
	}
	plan.AddCommand(
		planImportCmd(svc),
		planListCmd(svc),
		planUseCmd(svc),
		planShowCmd(svc),
	)
	return plan
}

func planImportCmd(svc func() *app.Services) *cobra.Command {
	var (
		save  bool
		edits planner.Edits
	)
	cmd := &cobra.Command{
		Use:   "import <path|url>",
		Short: "Extract a meal plan from a PDF, text file or web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := loadDocument(ctx, args[0])
			if err != nil {
				return err
			}

			a := svc().App
			plan, err := a.ImportPlan(ctx, doc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !save {
				printPlan(out, plan)
				fmt.Fprintln(out, "\nNot saved. Re-run with --save to keep it.")
				return nil
			}

			merged := planner.EditsFrom(plan)
			f := cmd.Flags()
			if f.Changed("title") {
				merged.Title = edits.Title
			}
			if f.Changed("calories") {
				merged.CaloriesPerDay = edits.CaloriesPerDay
			}
			if f.Changed("restrictions") {
				merged.Restrictions = edits.Restrictions
			}
			if f.Changed("disliked") {
				merged.DislikedIngredients = edits.DislikedIngredients
			}
			if f.Changed("notes") {
				merged.Notes = edits.Notes
			}

			saved, err := a.ConfirmPlan(ctx, plan, merged)
			if err != nil {
				return err
			}
			printPlan(out, saved)
			fmt.Fprintln(out, "\nSaved and set as the active plan.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Save the plan and make it active")
	cmd.Flags().StringVar(&edits.Title, "title", "", "Override the extracted title")
	cmd.Flags().StringVar(&edits.CaloriesPerDay, "calories", "", "Override calories per day (empty clears)")
	cmd.Flags().StringVar(&edits.Restrictions, "restrictions", "", "Comma separated restrictions")
	cmd.Flags().StringVar(&edits.DislikedIngredients, "disliked", "", "Comma separated disliked ingredients")
	cmd.Flags().StringVar(&edits.Notes, "notes", "", "Free-form notes")
	return cmd
}

func loadDocument(ctx context.Context, src string) (document.Document, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return document.Fetch(ctx, nil, src)
	}
	return document.Load(src)
}

func planListCmd(svc func() *app.Services) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored meal plans, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := svc().App
			plans, err := a.Plans(ctx)
			if err != nil {
				return err
			}
			activeID := ""
			if active, err := a.ActivePlan(ctx); err == nil && active != nil {
				activeID = active.ID
			}

			out := cmd.OutOrStdout()
			if len(plans) == 0 {
				fmt.Fprintln(out, "No meal plans yet.")
				return nil
			}
			for _, p := range plans {
				marker := " "
				if p.ID == activeID {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\t%s\n", marker, p.ID, p.Title)
			}
			return nil
		},
	}
}

func planUseCmd(svc func() *app.Services) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a stored plan the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := svc().App
			plan, err := a.Plan(ctx, args[0])
			if err != nil {
				return err
			}
			if plan == nil {
				return fmt.Errorf("plan %s not found", args[0])
			}
			if err := a.SetActivePlan(ctx, plan.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active plan: %s\n", plan.Title)
			return nil
		},
	}
}

func planShowCmd(svc func() *app.Services) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := svc().App.ActivePlan(cmd.Context())
			if err != nil {
				return err
			}
			if plan == nil {
				return app.ErrNoActivePlan
			}
			printPlan(cmd.OutOrStdout(), *plan)
			return nil
		},
	}
}

func printPlan(w io.Writer, p planner.Plan) {
	fmt.Fprintf(w, "%s (%s)\n", p.Title, p.ID)
	if p.CaloriesPerDay != nil {
		fmt.Fprintf(w, "  Calories:     %s kcal/day\n", strconv.FormatFloat(*p.CaloriesPerDay, 'f', -1, 64))
	}
	fmt.Fprintf(w, "  Restrictions: %s\n", listOrNone(p.Restrictions))
	if len(p.DislikedIngredients) > 0 {
		fmt.Fprintf(w, "  Disliked:     %s\n", strings.Join(p.DislikedIngredients, ", "))
	}
	if p.Notes != "" {
		fmt.Fprintf(w, "  Notes:        %s\n", p.Notes)
	}
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
