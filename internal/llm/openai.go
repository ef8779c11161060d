package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"meal-buddy/internal/shared"
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	OpenAIModel   = "gpt-4.1-mini"

	GroqBaseURL = "https://api.groq.com/openai/v1"
	GroqModel   = "llama-3.3-70b-versatile"
)

// OpenAIOptions tunes an OpenAI-compatible client.
type OpenAIOptions struct {
	BaseURL     string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

// openAIClient talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself, Groq).
type openAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewOpenAIClient creates a new OpenAI-compatible API client.
func NewOpenAIClient(apiKey string, opts OpenAIOptions) TextGenerator {
	if opts.BaseURL == "" {
		opts.BaseURL = OpenAIBaseURL
	}
	if opts.Model == "" {
		opts.Model = OpenAIModel
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &openAIClient{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		model:       opts.Model,
		temperature: opts.Temperature,
		httpClient:  opts.HTTPClient,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type string    `json:"type"`
	Text string    `json:"text,omitempty"`
	File *filePart `json:"file,omitempty"`
}

type filePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// buildMessages maps a Request onto chat messages. Text documents are
// inlined; anything else goes as a base64 file part.
func buildMessages(req Request) []chatMessage {
	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}

	doc := req.Document
	switch {
	case doc == nil:
		messages = append(messages, chatMessage{Role: "user", Content: req.User})
	case doc.IsText():
		text := fmt.Sprintf("%s\n\nDocument %q:\n%s", req.User, doc.Name, string(doc.Data))
		messages = append(messages, chatMessage{Role: "user", Content: text})
	default:
		dataURL := fmt.Sprintf("data:%s;base64,%s", doc.MIMEType, base64.StdEncoding.EncodeToString(doc.Data))
		messages = append(messages, chatMessage{Role: "user", Content: []contentPart{
			{Type: "text", Text: req.User},
			{Type: "file", File: &filePart{Filename: doc.Name, FileData: dataURL}},
		}})
	}
	return messages
}

// GenerateContent sends the request to the chat completions endpoint and
// returns the generated text.
func (c *openAIClient) GenerateContent(ctx context.Context, req Request) (ContentResponse, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    buildMessages(req),
		Temperature: c.temperature,
	}
	if req.JSON {
		reqBody.ResponseFormat = map[string]string{"type": "json_object"}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ContentResponse{}, &APIError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return ContentResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}

	model := chatResp.Model
	if model == "" {
		model = c.model
	}
	usage := shared.TokenUsage{
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
		TotalTokens:      chatResp.Usage.TotalTokens,
		Model:            model,
	}

	// An empty choice list is an upstream shape problem, not a transport
	// failure; the caller falls back to its defaults.
	if len(chatResp.Choices) == 0 {
		return ContentResponse{Usage: usage}, nil
	}

	return ContentResponse{
		Content: chatResp.Choices[0].Message.Content,
		Usage:   usage,
	}, nil
}

// APIError is a non-200 answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm api error: status=%d body=%s", e.StatusCode, e.Body)
}
