package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrEmptyAPIKey is returned when a client is requested without a key.
var ErrEmptyAPIKey = errors.New("api key is empty")

// Factory builds a TextGenerator for an API key.
type Factory func(ctx context.Context, apiKey string) (TextGenerator, error)

// Handle owns the provider client. It is configured once and reused until
// Configure is called again.
type Handle struct {
	factory Factory

	mu  sync.Mutex
	gen TextGenerator
}

// NewHandle creates an unconfigured Handle.
func NewHandle(factory Factory) *Handle {
	return &Handle{factory: factory}
}

// Configure builds a new client for apiKey, replacing (and closing) any
// previous one.
func (h *Handle) Configure(ctx context.Context, apiKey string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.configureLocked(ctx, apiKey)
}

// Generator returns the configured client, configuring it from apiKey on
// first use.
func (h *Handle) Generator(ctx context.Context, apiKey string) (TextGenerator, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.gen == nil {
		if err := h.configureLocked(ctx, apiKey); err != nil {
			return nil, err
		}
	}
	return h.gen, nil
}

// Configured reports whether a client exists.
func (h *Handle) Configured() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gen != nil
}

// Close releases the current client, if any.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if c, ok := h.gen.(Closer); ok {
		err = c.Close()
	}
	h.gen = nil
	return err
}

func (h *Handle) configureLocked(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return ErrEmptyAPIKey
	}

	gen, err := h.factory(ctx, apiKey)
	if err != nil {
		return fmt.Errorf("failed to configure llm client: %w", err)
	}

	if c, ok := h.gen.(Closer); ok {
		_ = c.Close()
	}
	h.gen = gen
	return nil
}
