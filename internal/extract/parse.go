package extract

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"meal-buddy/internal/planner"
)

// planFields is what survives validation of a plan extraction response.
type planFields struct {
	Title               string
	CaloriesPerDay      *float64
	Restrictions        []string
	DislikedIngredients []string
	Notes               string
}

// suggestionFields is what survives validation of one generated meal.
type suggestionFields struct {
	Title        string
	Description  string
	Ingredients  []string
	Instructions string
	Groceries    []string
}

// parsePlan validates a plan response field by field. A field that is missing
// or has the wrong shape falls back to its default without affecting the
// others. ok is false when the body is not a JSON object at all.
func parsePlan(content string) (fields planFields, ok bool) {
	fields = planFields{
		Title:               planner.DefaultTitle,
		Restrictions:        []string{},
		DislikedIngredients: []string{},
	}

	obj, ok := decodeObject(content)
	if !ok {
		return fields, false
	}

	if title := stringField(obj, "title"); title != "" {
		fields.Title = title
	}
	fields.CaloriesPerDay = positiveNumberField(obj, "caloriesPerDay")
	fields.Restrictions = stringListField(obj, "restrictions")
	fields.DislikedIngredients = stringListField(obj, "dislikedIngredients")
	fields.Notes = stringField(obj, "notes")
	return fields, true
}

// parseSuggestions reads the "meals" array, keeps at most limit entries and
// drops any entry that is not an object. ok is false when the body or the
// array is unusable.
func parseSuggestions(content string, limit int) (items []suggestionFields, ok bool) {
	obj, ok := decodeObject(content)
	if !ok {
		return nil, false
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(obj["meals"], &raw); err != nil || raw == nil {
		return nil, false
	}
	if len(raw) > limit {
		raw = raw[:limit]
	}

	for _, r := range raw {
		var meal map[string]json.RawMessage
		if err := json.Unmarshal(r, &meal); err != nil || meal == nil {
			continue
		}
		items = append(items, suggestionFields{
			Title:        stringField(meal, "title"),
			Description:  stringField(meal, "description"),
			Ingredients:  stringListField(meal, "ingredients"),
			Instructions: textField(meal, "instructions"),
			Groceries:    stringListField(meal, "groceries"),
		})
	}
	return items, true
}

// decodeObject parses content as a JSON object, tolerating markdown fences
// and chatter around the object.
func decodeObject(content string) (map[string]json.RawMessage, bool) {
	body := stripFences(content)
	if !strings.HasPrefix(body, "{") {
		start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
		if start < 0 || end <= start {
			return nil, false
		}
		body = body[start : end+1]
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // language tag
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// stringField returns the trimmed string at key, or "".
func stringField(obj map[string]json.RawMessage, key string) string {
	var s string
	if err := json.Unmarshal(obj[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// textField is stringField that also accepts a list of lines.
func textField(obj map[string]json.RawMessage, key string) string {
	if s := stringField(obj, key); s != "" {
		return s
	}
	return strings.Join(stringListField(obj, key), "\n")
}

// stringListField returns the non-blank strings in the array at key. A comma
// separated string is split. Anything else yields an empty, non-nil slice.
func stringListField(obj map[string]json.RawMessage, key string) []string {
	out := []string{}

	var list []json.RawMessage
	if err := json.Unmarshal(obj[key], &list); err != nil {
		if s := stringField(obj, key); s != "" {
			return planner.ParseList(s)
		}
		return out
	}

	for _, item := range list {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// positiveNumberField accepts a number or a numeric string greater than zero.
func positiveNumberField(obj map[string]json.RawMessage, key string) *float64 {
	raw, found := obj[key]
	if !found {
		return nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		if n, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return nil
		}
	}
	if n <= 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &n
}
