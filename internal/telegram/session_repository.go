package telegram

import (
	"sync"
	"time"

	"meal-buddy/internal/planner"
)

// DefaultSessionTTL bounds how long an imported plan waits for confirmation.
const DefaultSessionTTL = 30 * time.Minute

// Session is an imported plan awaiting the user's edits and confirmation.
type Session struct {
	UserID    int64
	Plan      planner.Plan
	Edits     planner.Edits
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionRepository keeps at most one pending session per user in memory.
type SessionRepository struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]Session
}

// NewSessionRepository creates a new SessionRepository instance
func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionRepository{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[int64]Session),
	}
}

// Create starts a session for plan, replacing any pending one.
func (sr *SessionRepository) Create(userID int64, plan planner.Plan) Session {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	now := sr.now()
	s := Session{
		UserID:    userID,
		Plan:      plan,
		Edits:     planner.EditsFrom(plan),
		ExpiresAt: now.Add(sr.ttl),
		CreatedAt: now,
	}
	sr.sessions[userID] = s
	return s
}

// GetActive retrieves the user's pending session if it has not expired.
func (sr *SessionRepository) GetActive(userID int64) (Session, bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	s, ok := sr.sessions[userID]
	if !ok {
		return Session{}, false
	}
	if !sr.now().Before(s.ExpiresAt) {
		delete(sr.sessions, userID)
		return Session{}, false
	}
	return s, true
}

// UpdateEdits applies fn to the pending edits and extends the expiry.
func (sr *SessionRepository) UpdateEdits(userID int64, fn func(*planner.Edits)) (Session, bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	s, ok := sr.sessions[userID]
	if !ok || !sr.now().Before(s.ExpiresAt) {
		delete(sr.sessions, userID)
		return Session{}, false
	}
	fn(&s.Edits)
	s.ExpiresAt = sr.now().Add(sr.ttl)
	sr.sessions[userID] = s
	return s, true
}

// Delete removes a session
func (sr *SessionRepository) Delete(userID int64) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	delete(sr.sessions, userID)
}

// CleanupExpired removes all expired sessions and reports how many went.
func (sr *SessionRepository) CleanupExpired() int {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	now := sr.now()
	removed := 0
	for id, s := range sr.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(sr.sessions, id)
			removed++
		}
	}
	return removed
}
