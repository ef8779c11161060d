package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"meal-buddy/internal/meals"
	"meal-buddy/internal/metrics"
	"meal-buddy/internal/planner"
	"meal-buddy/internal/shopping"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func formatPlanMarkdown(plan planner.Plan) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 *%s*\n\n", esc(plan.Title)))

	if plan.CaloriesPerDay != nil {
		sb.WriteString(fmt.Sprintf("🔥 *Calories:* %s kcal/day\n", strconv.FormatFloat(*plan.CaloriesPerDay, 'f', -1, 64)))
	}
	if len(plan.Restrictions) > 0 {
		sb.WriteString(fmt.Sprintf("🚫 *Restrictions:* %s\n", esc(strings.Join(plan.Restrictions, ", "))))
	} else {
		sb.WriteString("🚫 *Restrictions:* none\n")
	}
	if len(plan.DislikedIngredients) > 0 {
		sb.WriteString(fmt.Sprintf("👎 *Disliked:* %s\n", esc(strings.Join(plan.DislikedIngredients, ", "))))
	}
	if plan.Notes != "" {
		sb.WriteString(fmt.Sprintf("\n_%s_\n", esc(plan.Notes)))
	}
	return sb.String()
}

// formatPendingPlan previews an imported plan with the edits applied so far.
func formatPendingPlan(s Session) string {
	preview, err := s.Plan.ApplyEdits(s.Edits)
	if err != nil {
		preview = s.Plan
	}

	var sb strings.Builder
	sb.WriteString("🧾 *Review your meal plan*\n\n")
	sb.WriteString(formatPlanMarkdown(preview))
	sb.WriteString("\nAdjust with /title, /calories, /restrictions, /disliked or /notes, then tap *Save*.")
	return sb.String()
}

func formatPlanList(plans []planner.Plan, activeID string) string {
	if len(plans) == 0 {
		return "📭 No meal plans yet. Send me a PDF or a link to one."
	}

	var sb strings.Builder
	sb.WriteString("📚 *Your meal plans*\n\n")
	for i, p := range plans {
		marker := ""
		if p.ID == activeID {
			marker = " ⭐"
		}
		sb.WriteString(fmt.Sprintf("%d. %s%s\n", i+1, esc(p.Title), marker))
	}
	sb.WriteString("\nSwitch with /use <number>.")
	return sb.String()
}

// formatSuggestions numbers suggestions from 1 in the order given, which is
// the order /select expects.
func formatSuggestions(list []meals.Suggestion, selected shopping.SelectionState) string {
	if len(list) == 0 {
		return "🍽 No suggestions yet. Try /suggest breakfast."
	}

	var sb strings.Builder
	sb.WriteString("🍽 *Meal Suggestions*\n\n")
	for i, s := range list {
		box := "⬜"
		if selected.IsSelected(s.ID) {
			box = "✅"
		}
		title := s.Title
		if title == "" {
			title = "Untitled"
		}
		sb.WriteString(fmt.Sprintf("%s %d. *%s* (%s)\n", box, i+1, esc(title), s.Type))
		if s.Description != "" {
			sb.WriteString(fmt.Sprintf("_%s_\n", esc(s.Description)))
		}
		if len(s.Ingredients) > 0 {
			sb.WriteString(fmt.Sprintf("Ingredients: %s\n", esc(strings.Join(s.Ingredients, ", "))))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Add a meal to your groceries with /select <number>.")
	return sb.String()
}

func formatGroceries(items []shopping.Item) string {
	if len(items) == 0 {
		return "🛒 Your grocery list is empty. Select meals with /select <number>."
	}

	var sb strings.Builder
	sb.WriteString("🛒 *Grocery List*\n\n")
	for i, it := range items {
		box := "⬜"
		if it.Checked {
			box = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s %d. %s\n", box, i+1, esc(it.Name)))
	}
	sb.WriteString("\nTick items off with /check <number>.")
	return sb.String()
}

func formatUsageReport(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", metrics.FormatBytes(health.DataBytes)))
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", health.Uptime))
	return sb.String()
}

const helpText = `🥗 *Meal Buddy*

Send me a meal plan as a PDF, text file or link and I will read it for you.

/key <secret> - store your API key
/plan - show the active plan
/plans - list plans, /use <number> to switch
/suggest <breakfast|lunch|dinner> [count] - new meal ideas
/suggestions - meals for the active plan
/select <number> - add or remove a meal from groceries
/groceries - show the grocery list
/check <number> - tick a grocery item
/metrics - usage and health`
