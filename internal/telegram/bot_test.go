package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"meal-buddy/internal/app"
	"meal-buddy/internal/extract"
	"meal-buddy/internal/llm"
	"meal-buddy/internal/meals"
	"meal-buddy/internal/metrics"
	"meal-buddy/internal/planner"
	"meal-buddy/internal/shopping"
	"meal-buddy/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type mockSender struct {
	mu       sync.Mutex
	sent     []string
	requests []tgbotapi.Chattable
	fileURL  string
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		m.sent = append(m.sent, v.Text)
	case tgbotapi.EditMessageTextConfig:
		m.sent = append(m.sent, v.Text)
	}
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func (m *mockSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockSender) GetFileDirectURL(string) (string, error) {
	return m.fileURL, nil
}

func (m *mockSender) HandleUpdate(r *http.Request) (*tgbotapi.Update, error) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		return nil, err
	}
	return &update, nil
}

func (m *mockSender) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1]
}

type mockTextGen struct{}

func (mockTextGen) GenerateContent(_ context.Context, req llm.Request) (llm.ContentResponse, error) {
	if req.Document != nil {
		return llm.ContentResponse{Content: `{"title":"Cutting Plan","restrictions":["no dairy"]}`}, nil
	}
	return llm.ContentResponse{Content: `{"meals":[{"title":"Omelette","groceries":["eggs","spinach"]}]}`}, nil
}

const userID = int64(42)

func newTestBot(t *testing.T) (*Bot, *mockSender) {
	t.Helper()

	handle := llm.NewHandle(func(context.Context, string) (llm.TextGenerator, error) {
		return mockTextGen{}, nil
	})
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	svc := &app.Services{App: app.NewApp(store.New(store.NewMemoryBackend(), logger), handle, nil, logger)}

	sender := &mockSender{}
	return newBot(sender, svc, []int64{userID}, logger), sender
}

func command(text string) *tgbotapi.Message {
	name := strings.SplitN(text, " ", 2)[0]
	return &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: 99},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func TestBotFlow(t *testing.T) {
	ctx := context.Background()
	b, sender := newTestBot(t)

	pdf := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("%PDF-1.4 plan"))
	}))
	defer pdf.Close()
	sender.fileURL = pdf.URL + "/file/abc"

	b.processMessage(ctx, command("/suggest breakfast"))
	if !strings.Contains(sender.last(), "/key") {
		t.Fatalf("Expected a prompt to set the key, got %q", sender.last())
	}

	b.processMessage(ctx, command("/key sk-test"))
	if !strings.Contains(sender.last(), "API key saved") {
		t.Fatalf("Expected key confirmation, got %q", sender.last())
	}
	if len(sender.requests) != 1 {
		t.Errorf("Expected the key message to be deleted, got %d requests", len(sender.requests))
	}

	b.processMessage(ctx, &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: 99},
		Document: &tgbotapi.Document{FileID: "f1", FileName: "plan.pdf", MimeType: "application/pdf"},
	})
	if !strings.Contains(sender.last(), "Cutting Plan") {
		t.Fatalf("Expected plan preview, got %q", sender.last())
	}

	b.processMessage(ctx, command("/calories lots"))
	if !strings.Contains(sender.last(), "invalid calories") {
		t.Errorf("Expected calories validation error, got %q", sender.last())
	}
	b.processMessage(ctx, command("/calories 1800"))
	if !strings.Contains(sender.last(), "1800 kcal/day") {
		t.Errorf("Expected updated preview, got %q", sender.last())
	}

	b.handleCallbackQuery(ctx, &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 99}},
		Data:    callbackSave,
	})
	active, err := b.app.ActivePlan(ctx)
	if err != nil || active == nil || active.Title != "Cutting Plan" || active.CaloriesPerDay == nil {
		t.Fatalf("Expected saved active plan with calories, got %+v (err %v)", active, err)
	}

	b.processMessage(ctx, command("/suggest breakfast"))
	if !strings.Contains(sender.last(), "Omelette") {
		t.Fatalf("Expected suggestions, got %q", sender.last())
	}

	b.processMessage(ctx, command("/select 1"))
	if !strings.Contains(sender.last(), "eggs") || !strings.Contains(sender.last(), "spinach") {
		t.Fatalf("Expected grocery list, got %q", sender.last())
	}

	b.processMessage(ctx, command("/check 2"))
	if !strings.Contains(sender.last(), "✅ 2. spinach") {
		t.Errorf("Expected spinach checked, got %q", sender.last())
	}

	b.processMessage(ctx, command("/metrics"))
	if !strings.Contains(sender.last(), "not enabled") {
		t.Errorf("Expected metrics disabled message, got %q", sender.last())
	}
}

func TestRouter(t *testing.T) {
	b, sender := newTestBot(t)
	srv := httptest.NewServer(b.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /health, got %d", resp.StatusCode)
	}

	body := `{"update_id":1,"message":{"message_id":1,"from":{"id":666},"chat":{"id":666},"text":"/plans"}}`
	resp, err = http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /webhook, got %d", resp.StatusCode)
	}
	if sender.last() != "" {
		t.Errorf("Expected no reply to an unknown user, got %q", sender.last())
	}

	resp, err = http.Post(srv.URL+"/webhook", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed update, got %d", resp.StatusCode)
	}
}

func TestSessionRepository(t *testing.T) {
	sr := NewSessionRepository(time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	sr.now = func() time.Time { return now }

	sr.Create(1, planner.Plan{ID: "p1", Title: "Bulk"})
	sess, ok := sr.UpdateEdits(1, func(e *planner.Edits) { e.Notes = "more protein" })
	if !ok || sess.Edits.Notes != "more protein" || sess.Edits.Title != "Bulk" {
		t.Fatalf("Unexpected session %+v (ok %v)", sess, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := sr.GetActive(1); ok {
		t.Error("Expected session to expire")
	}

	sr.Create(2, planner.Plan{ID: "p2"})
	now = now.Add(2 * time.Minute)
	if n := sr.CleanupExpired(); n != 1 {
		t.Errorf("Expected 1 expired session, got %d", n)
	}
}

func TestFormatPlanMarkdown(t *testing.T) {
	cal := 1800.0
	out := formatPlanMarkdown(planner.Plan{
		Title:               "Cutting_Plan",
		CaloriesPerDay:      &cal,
		Restrictions:        []string{"no dairy"},
		DislikedIngredients: []string{"olives"},
		Notes:               "Train 4x",
	})

	for _, want := range []string{`📋 *Cutting\_Plan*`, "1800 kcal/day", "no dairy", "👎 *Disliked:* olives", "_Train 4x_"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}

	if !strings.Contains(formatPlanMarkdown(planner.Plan{Title: "x"}), "*Restrictions:* none") {
		t.Error("Expected empty restrictions rendered as none")
	}
}

func TestFormatSuggestionsAndGroceries(t *testing.T) {
	list := []meals.Suggestion{
		{ID: "s1", Type: meals.Breakfast, Title: "Oats", Ingredients: []string{"oats", "milk"}},
		{ID: "s2", Type: meals.Lunch, Description: "Quick"},
	}
	state := shopping.NewSelectionState("p1")
	state.SelectedSuggestionIDs = []string{"s2"}

	out := formatSuggestions(list, state)
	if !strings.Contains(out, "⬜ 1. *Oats* (breakfast)") || !strings.Contains(out, "✅ 2. *Untitled* (lunch)") {
		t.Errorf("Unexpected suggestions output %q", out)
	}

	groceries := formatGroceries([]shopping.Item{{Name: "eggs", Checked: true}, {Name: "oats"}})
	if !strings.Contains(groceries, "✅ 1. eggs") || !strings.Contains(groceries, "⬜ 2. oats") {
		t.Errorf("Unexpected groceries output %q", groceries)
	}
	if !strings.Contains(formatGroceries(nil), "empty") {
		t.Error("Expected empty grocery message")
	}
}

func TestFormatUsageReport(t *testing.T) {
	out := formatUsageReport(
		[]metrics.DailyUsage{{Date: "2025-03-10", TotalPrompt: 100, TotalCompletion: 50, TotalExecution: 2}},
		metrics.SysHealth{AllocMB: 3, SysMB: 10, Goroutines: 5, DataBytes: 2048},
	)
	for _, want := range []string{"*2025-03-10*: 150 tokens (2 execs)", "RAM: 3MB", "2.0 KB"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}
}

func TestUserMessage(t *testing.T) {
	if !strings.Contains(userMessage("x", extract.ErrMissingCredential), "/key") {
		t.Error("Expected key guidance")
	}
	if !strings.Contains(userMessage("x", app.ErrNoActivePlan), "No active meal plan") {
		t.Error("Expected active plan guidance")
	}
	if got := userMessage("saving", errors.New("disk `full`")); !strings.Contains(got, "disk 'full'") {
		t.Errorf("Expected backticks replaced, got %q", got)
	}
}

func TestParseIndex(t *testing.T) {
	if i, err := parseIndex(" 2 ", 3); err != nil || i != 1 {
		t.Errorf("parseIndex(2) = %d, %v", i, err)
	}
	for _, bad := range []string{"0", "4", "two", ""} {
		if _, err := parseIndex(bad, 3); err == nil {
			t.Errorf("Expected an error for %q", bad)
		}
	}
}
