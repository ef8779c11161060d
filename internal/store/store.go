package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Collection names. Each one is persisted independently under its own key.
const (
	MealPlans         = "mb.mealPlans"
	ActiveMealPlanID  = "mb.activeMealPlanId"
	MealSuggestions   = "mb.mealSuggestions"
	GrocerySelections = "mb.grocerySelections"
	APIKey            = "mb.apiKey"
)

// ErrNoChange tells Update to skip the write.
var ErrNoChange = errors.New("no change")

// Backend persists raw collection bytes. Get returns nil, nil for a key that
// was never written. Put must replace the whole value atomically.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Store reads and writes whole collections on top of a Backend. Writes to the
// same collection are serialized so read-modify-write cycles never interleave.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Store) lock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// Load reads a collection into a value of type T. A missing collection yields
// the zero value. Bytes that do not decode as T are treated as missing.
func Load[T any](ctx context.Context, s *Store, name string) (T, error) {
	var value T
	raw, err := s.backend.Get(ctx, name)
	if err != nil {
		return value, fmt.Errorf("failed to read collection %s: %w", name, err)
	}
	if len(raw) == 0 {
		return value, nil
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		s.logger.Warn("discarding malformed collection", "collection", name, "error", err)
		var zero T
		return zero, nil
	}
	return value, nil
}

// Save replaces a collection with value.
func Save[T any](ctx context.Context, s *Store, name string, value T) error {
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	return s.write(ctx, name, value)
}

// Update runs fn on the current contents of a collection and writes back its
// result, holding the collection's write lock for the whole cycle. If fn
// returns ErrNoChange nothing is written.
func Update[T any](ctx context.Context, s *Store, name string, fn func(current T) (T, error)) error {
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	current, err := Load[T](ctx, s, name)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if errors.Is(err, ErrNoChange) {
		return nil
	}
	if err != nil {
		return err
	}

	return s.write(ctx, name, next)
}

func (s *Store) write(ctx context.Context, name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal collection %s: %w", name, err)
	}
	if err := s.backend.Put(ctx, name, data); err != nil {
		return fmt.Errorf("failed to write collection %s: %w", name, err)
	}
	return nil
}
