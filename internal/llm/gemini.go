package llm

import (
	"context"
	"fmt"
	"strings"

	"meal-buddy/internal/shared"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiModel is used when no model name is configured.
const GeminiModel = "gemini-2.0-flash"

// geminiClient is a client for the Google Gemini API.
type geminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient creates a new Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (TextGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = GeminiModel
	}
	return &geminiClient{client: client, modelName: modelName}, nil
}

// GenerateContent sends the request to the Gemini model and returns the
// generated text. PDFs and other binary documents go as inline blobs.
func (c *geminiClient) GenerateContent(ctx context.Context, req Request) (ContentResponse, error) {
	// A fresh model per call: system instruction and MIME type are per request.
	model := c.client.GenerativeModel(c.modelName)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	parts := []genai.Part{genai.Text(req.User)}
	if doc := req.Document; doc != nil {
		if doc.IsText() {
			parts = append(parts, genai.Text(fmt.Sprintf("Document %q:\n%s", doc.Name, string(doc.Data))))
		} else {
			parts = append(parts, genai.Blob{MIMEType: doc.MIMEType, Data: doc.Data})
		}
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to generate content: %w", err)
	}

	usage := shared.TokenUsage{Model: c.modelName}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ContentResponse{Usage: usage}, nil
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	return ContentResponse{Content: sb.String(), Usage: usage}, nil
}

// Close closes the underlying Gemini client.
func (c *geminiClient) Close() error {
	return c.client.Close()
}
