package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"meal-buddy/internal/app"
	"meal-buddy/internal/document"
	"meal-buddy/internal/extract"
	"meal-buddy/internal/meals"
	"meal-buddy/internal/metrics"
	"meal-buddy/internal/planner"
	"meal-buddy/internal/shopping"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	callbackSave    = "plan:save"
	callbackDiscard = "plan:discard"
)

var editFields = map[string]func(e *planner.Edits, v string){
	"title":        func(e *planner.Edits, v string) { e.Title = v },
	"calories":     func(e *planner.Edits, v string) { e.CaloriesPerDay = v },
	"restrictions": func(e *planner.Edits, v string) { e.Restrictions = v },
	"disliked":     func(e *planner.Edits, v string) { e.DislikedIngredients = v },
	"notes":        func(e *planner.Edits, v string) { e.Notes = v },
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.Document != nil {
		b.handleDocumentUpload(ctx, msg)
		return
	}

	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	if set, ok := editFields[cmd]; ok {
		b.handlePlanEdit(msg.From.ID, chatID, set, args)
		return
	}

	switch cmd {
	case "start", "help":
		b.reply(chatID, helpText)
	case "key":
		b.handleKey(ctx, msg, args)
	case "plan":
		b.handleShowPlan(ctx, chatID)
	case "plans":
		b.handleListPlans(ctx, chatID)
	case "use":
		b.handleUsePlan(ctx, chatID, args)
	case "suggest":
		b.handleSuggest(ctx, chatID, args)
	case "suggestions":
		b.handleListSuggestions(ctx, chatID)
	case "select":
		b.handleSelect(ctx, chatID, args)
	case "groceries":
		b.handleGroceries(ctx, chatID)
	case "check":
		b.handleCheck(ctx, chatID, args)
	case "metrics":
		b.handleMetricsCommand(ctx, chatID)
	case "":
		text := strings.TrimSpace(msg.Text)
		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			b.handleURL(ctx, msg.From.ID, chatID, text)
			return
		}
		b.reply(chatID, helpText)
	default:
		b.reply(chatID, "🤔 Unknown command. Try /help.")
	}
}

func (b *Bot) handleDocumentUpload(ctx context.Context, msg *tgbotapi.Message) {
	fileURL, err := b.api.GetFileDirectURL(msg.Document.FileID)
	if err != nil {
		b.replyError(msg.Chat.ID, "fetching your file", err)
		return
	}

	fetched, err := document.Fetch(ctx, b.httpClient, fileURL)
	if err != nil {
		b.replyError(msg.Chat.ID, "downloading your file", err)
		return
	}
	doc, err := document.New(msg.Document.FileName, msg.Document.MimeType, fetched.Data)
	if err != nil {
		b.replyError(msg.Chat.ID, "reading your file", err)
		return
	}

	b.importDocument(ctx, msg.From.ID, msg.Chat.ID, doc)
}

func (b *Bot) handleURL(ctx context.Context, userID, chatID int64, url string) {
	doc, err := document.Fetch(ctx, b.httpClient, url)
	if err != nil {
		b.replyError(chatID, "fetching that page", err)
		return
	}
	b.importDocument(ctx, userID, chatID, doc)
}

func (b *Bot) importDocument(ctx context.Context, userID, chatID int64, doc document.Document) {
	status := tgbotapi.NewMessage(chatID, "📖 *Reading your meal plan...*")
	status.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.api.Send(status)
	if err != nil {
		b.logger.Warn("failed to send initial reply", "error", err)
		return
	}

	plan, err := b.app.ImportPlan(ctx, doc)
	if err != nil {
		b.logger.Error("plan import failed", "document", doc.Name, "error", err)
		b.editText(chatID, sent.MessageID, userMessage("reading your meal plan", err))
		return
	}

	sess := b.sessions.Create(userID, plan)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, sent.MessageID, formatPendingPlan(sess), confirmKeyboard())
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("failed to send plan preview", "error", err)
	}
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Save", callbackSave),
			tgbotapi.NewInlineKeyboardButtonData("❌ Discard", callbackDiscard),
		),
	)
}

func (b *Bot) handlePlanEdit(userID, chatID int64, set func(*planner.Edits, string), value string) {
	sess, ok := b.sessions.GetActive(userID)
	if !ok {
		b.reply(chatID, "📄 Nothing to edit. Send me a meal plan first.")
		return
	}

	// Validate against a copy so a bad value never reaches the session.
	edits := sess.Edits
	set(&edits, value)
	if _, err := sess.Plan.ApplyEdits(edits); err != nil {
		b.reply(chatID, "⚠️ "+esc(err.Error()))
		return
	}

	sess, ok = b.sessions.UpdateEdits(userID, func(e *planner.Edits) { set(e, value) })
	if !ok {
		b.reply(chatID, "⌛ That plan expired. Please send it again.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, formatPendingPlan(sess))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = confirmKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send plan preview", "error", err)
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Answer callback to remove spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("failed to answer callback", "error", err)
	}
	if query.Message == nil {
		return
	}
	chatID, messageID := query.Message.Chat.ID, query.Message.MessageID

	sess, ok := b.sessions.GetActive(query.From.ID)
	if !ok {
		b.editText(chatID, messageID, "⌛ That plan expired. Please send it again.")
		return
	}

	switch query.Data {
	case callbackSave:
		plan, err := b.app.ConfirmPlan(ctx, sess.Plan, sess.Edits)
		if err != nil {
			b.editText(chatID, messageID, userMessage("saving your plan", err))
			return
		}
		b.sessions.Delete(query.From.ID)
		b.editText(chatID, messageID, "✅ *Saved and active!*\n\n"+formatPlanMarkdown(plan)+"\nNext: /suggest breakfast")
	case callbackDiscard:
		b.sessions.Delete(query.From.ID)
		b.editText(chatID, messageID, "🗑 Discarded.")
	}
}

func (b *Bot) handleKey(ctx context.Context, msg *tgbotapi.Message, key string) {
	chatID := msg.Chat.ID
	if key == "" {
		b.reply(chatID, "Usage: /key <secret>")
		return
	}

	// Keep the secret out of the chat history.
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID)); err != nil {
		b.logger.Warn("failed to delete key message", "error", err)
	}

	if err := b.app.SetCredential(ctx, key); err != nil {
		b.replyError(chatID, "saving your key", err)
		return
	}
	b.reply(chatID, "🔑 API key saved.")
}

func (b *Bot) handleShowPlan(ctx context.Context, chatID int64) {
	plan, err := b.app.ActivePlan(ctx)
	if err != nil {
		b.replyError(chatID, "loading your plan", err)
		return
	}
	if plan == nil {
		b.reply(chatID, userMessage("", app.ErrNoActivePlan))
		return
	}
	b.reply(chatID, formatPlanMarkdown(*plan))
}

func (b *Bot) handleListPlans(ctx context.Context, chatID int64) {
	plans, err := b.app.Plans(ctx)
	if err != nil {
		b.replyError(chatID, "loading your plans", err)
		return
	}
	activeID := ""
	if active, err := b.app.ActivePlan(ctx); err == nil && active != nil {
		activeID = active.ID
	}
	b.reply(chatID, formatPlanList(plans, activeID))
}

func (b *Bot) handleUsePlan(ctx context.Context, chatID int64, arg string) {
	plans, err := b.app.Plans(ctx)
	if err != nil {
		b.replyError(chatID, "loading your plans", err)
		return
	}
	i, err := parseIndex(arg, len(plans))
	if err != nil {
		b.reply(chatID, "Usage: /use <number> (see /plans)")
		return
	}
	if err := b.app.SetActivePlan(ctx, plans[i].ID); err != nil {
		b.replyError(chatID, "switching plans", err)
		return
	}
	b.reply(chatID, "⭐ Active plan: "+esc(plans[i].Title))
}

func (b *Bot) handleSuggest(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.reply(chatID, "Usage: /suggest <breakfast|lunch|dinner> [count]")
		return
	}
	mealType, err := meals.ParseMealType(fields[0])
	if err != nil {
		b.reply(chatID, userMessage("", err))
		return
	}
	count := 0
	if len(fields) > 1 {
		if count, err = strconv.Atoi(fields[1]); err != nil || count < 1 {
			b.reply(chatID, "Count must be a positive number.")
			return
		}
	}

	status := tgbotapi.NewMessage(chatID, "🧑‍🍳 *Thinking...*")
	status.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.api.Send(status)
	if err != nil {
		b.logger.Warn("failed to send initial reply", "error", err)
		return
	}

	batch, err := b.app.GenerateSuggestions(ctx, mealType, count)
	if err != nil {
		b.logger.Error("suggestion generation failed", "meal_type", mealType, "error", err)
		b.editText(chatID, sent.MessageID, userMessage("generating suggestions", err))
		return
	}
	if len(batch) == 0 {
		b.editText(chatID, sent.MessageID, "😕 No usable suggestions came back. Please try again.")
		return
	}
	// New suggestions are stored first, so their numbers match /suggestions.
	b.editText(chatID, sent.MessageID, formatSuggestions(batch, shopping.SelectionState{}))
}

func (b *Bot) activeSuggestions(ctx context.Context) ([]meals.Suggestion, shopping.SelectionState, error) {
	plan, err := b.app.ActivePlan(ctx)
	if err != nil {
		return nil, shopping.SelectionState{}, err
	}
	if plan == nil {
		return nil, shopping.SelectionState{}, app.ErrNoActivePlan
	}
	list, err := b.app.Suggestions(ctx, plan.ID)
	if err != nil {
		return nil, shopping.SelectionState{}, err
	}
	state, err := b.app.GrocerySelections(ctx, plan.ID)
	if err != nil {
		return nil, shopping.SelectionState{}, err
	}
	if state == nil {
		return list, shopping.NewSelectionState(plan.ID), nil
	}
	return list, *state, nil
}

func (b *Bot) handleListSuggestions(ctx context.Context, chatID int64) {
	list, state, err := b.activeSuggestions(ctx)
	if err != nil {
		b.reply(chatID, userMessage("loading suggestions", err))
		return
	}
	b.reply(chatID, formatSuggestions(list, state))
}

func (b *Bot) handleSelect(ctx context.Context, chatID int64, arg string) {
	list, _, err := b.activeSuggestions(ctx)
	if err != nil {
		b.reply(chatID, userMessage("loading suggestions", err))
		return
	}
	i, err := parseIndex(arg, len(list))
	if err != nil {
		b.reply(chatID, "Usage: /select <number> (see /suggestions)")
		return
	}
	if _, err := b.app.ToggleSuggestion(ctx, list[i].ID); err != nil {
		b.reply(chatID, userMessage("updating your selection", err))
		return
	}
	b.handleGroceries(ctx, chatID)
}

func (b *Bot) handleGroceries(ctx context.Context, chatID int64) {
	items, err := b.app.GroceryList(ctx)
	if err != nil {
		b.reply(chatID, userMessage("building your grocery list", err))
		return
	}
	b.reply(chatID, formatGroceries(items))
}

func (b *Bot) handleCheck(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		b.reply(chatID, "Usage: /check <number>")
		return
	}
	items, err := b.app.GroceryList(ctx)
	if err != nil {
		b.reply(chatID, userMessage("building your grocery list", err))
		return
	}

	name := arg
	if i, err := parseIndex(arg, len(items)); err == nil {
		name = items[i].Name
	}
	if _, err := b.app.ToggleGrocery(ctx, name); err != nil {
		b.reply(chatID, userMessage("updating your grocery list", err))
		return
	}
	b.handleGroceries(ctx, chatID)
}

func (b *Bot) handleMetricsCommand(ctx context.Context, chatID int64) {
	if b.metricsStore == nil {
		b.reply(chatID, "📊 Metrics are not enabled for this store.")
		return
	}
	usage, err := b.metricsStore.GetDailyUsage(ctx, 7)
	if err != nil {
		b.logger.Error("failed to fetch metrics", "error", err)
		b.reply(chatID, "❌ Error fetching metrics.")
		return
	}
	b.reply(chatID, formatUsageReport(usage, metrics.GetSysHealth(b.dataDir)))
}

func (b *Bot) editText(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("failed to edit message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) replyError(chatID int64, action string, err error) {
	b.logger.Error("request failed", "action", action, "error", err)
	b.reply(chatID, userMessage(action, err))
}

// userMessage turns an error into chat text, with guidance for the errors a
// user can fix.
func userMessage(action string, err error) string {
	switch {
	case errors.Is(err, extract.ErrMissingCredential):
		return "🔑 Set your API key first with /key <secret>."
	case errors.Is(err, app.ErrNoActivePlan):
		return "📄 No active meal plan. Send me a PDF or a link to one."
	case errors.Is(err, meals.ErrInvalidMealType):
		return "🍽 Meal type must be breakfast, lunch or dinner."
	case errors.Is(err, document.ErrEmptyDocument):
		return "📭 That document looks empty."
	case errors.Is(err, app.ErrSuggestionNotFound):
		return "🤔 That suggestion is not part of the active plan."
	}
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	return fmt.Sprintf("❌ *Error %s:*\n```\n%s\n```", action, safeErr)
}

// parseIndex converts a 1-based list number into an index below n.
func parseIndex(arg string, n int) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, err
	}
	if i < 1 || i > n {
		return 0, fmt.Errorf("number %d out of range 1-%d", i, n)
	}
	return i - 1, nil
}
