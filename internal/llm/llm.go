package llm

import (
	"context"

	"meal-buddy/internal/shared"
)

// Attachment is a document sent along with a request.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// IsText reports whether the attachment can be inlined as plain text.
func (a *Attachment) IsText() bool {
	return a != nil && (a.MIMEType == "text/plain" || a.MIMEType == "text/markdown" || a.MIMEType == "application/json")
}

// Request is one generation call: a system instruction, a user instruction
// and an optional document.
type Request struct {
	System   string
	User     string
	Document *Attachment
	// JSON asks the provider for a JSON object response.
	JSON bool
}

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a request.
type TextGenerator interface {
	GenerateContent(ctx context.Context, req Request) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}
