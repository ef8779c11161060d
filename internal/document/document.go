package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"meal-buddy/internal/llm"

	"github.com/PuerkitoBio/goquery"
)

// MaxSize caps how many bytes are read from a file or URL.
const MaxSize = 20 << 20

// ErrEmptyDocument is returned for a document with no content.
var ErrEmptyDocument = errors.New("document is empty")

// Document is a candidate meal plan supplied by the user.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// New builds a Document, detecting its type from the name and then the
// content when mimeType is empty.
func New(name, mimeType string, data []byte) (Document, error) {
	if len(data) == 0 {
		return Document{}, ErrEmptyDocument
	}
	if name == "" {
		name = "meal-plan"
	}
	if mimeType == "" {
		mimeType = DetectType(name, data)
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}
	return Document{Name: name, MIMEType: mimeType, Data: data}, nil
}

// DetectType guesses a MIME type from the file extension, falling back to
// content sniffing.
func DetectType(name string, data []byte) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

// Load reads a document from disk.
func Load(filePath string) (Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return Document{}, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxSize))
	if err != nil {
		return Document{}, fmt.Errorf("failed to read document: %w", err)
	}
	return New(filepath.Base(filePath), "", data)
}

// Fetch downloads a document over HTTP.
func Fetch(ctx context.Context, client *http.Client, rawURL string) (Document, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("failed to fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxSize))
	if err != nil {
		return Document{}, fmt.Errorf("failed to read response body: %w", err)
	}

	name := "meal-plan"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			name = base
		}
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}
	return New(name, mimeType, data)
}

// Attachment converts the document into what the LLM layer sends. HTML is
// reduced to its visible text first.
func (d Document) Attachment() (*llm.Attachment, error) {
	if d.MIMEType != "text/html" {
		return &llm.Attachment{Name: d.Name, MIMEType: d.MIMEType, Data: d.Data}, nil
	}

	text, err := HTMLText(d.Data)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyDocument
	}
	return &llm.Attachment{Name: d.Name, MIMEType: "text/plain", Data: []byte(text)}, nil
}

// HTMLText strips scripts, styles and page chrome from an HTML page and
// returns the remaining body text with blank runs collapsed.
func HTMLText(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	// Remove noise to save LLM tokens
	doc.Find("script, style, nav, footer, iframe, noscript, ads, .ads, #ads").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var lines []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
