package flow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/AgentMint/internal/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Session store defaults.
const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultMaxSessions = 10000
)

type sessionEntry struct {
	mu      sync.Mutex
	session *models.Session
}

// SessionStore maps participant IDs to in-memory sessions. Sessions idle for
// longer than the TTL, or pushed out by the size bound, are evicted; a later
// message from that participant starts a fresh session.
type SessionStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *sessionEntry]
}

// NewSessionStore creates a store holding at most maxSessions sessions, each
// expiring ttl after its last update. Non-positive values disable the bound.
func NewSessionStore(maxSessions int, ttl time.Duration) *SessionStore {
	if maxSessions < 0 {
		maxSessions = 0
	}
	onEvict := func(id string, e *sessionEntry) {
		slog.Debug("SessionStore evicted session", "participantID", id)
	}
	slog.Debug("Creating SessionStore", "max_sessions", maxSessions, "ttl", ttl)
	return &SessionStore{cache: expirable.NewLRU[string, *sessionEntry](maxSessions, onEvict, ttl)}
}

func (st *SessionStore) entry(participantID string) *sessionEntry {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.cache.Get(participantID)
	if !ok {
		e = &sessionEntry{session: models.NewSession(participantID)}
		st.cache.Add(participantID, e)
		slog.Debug("SessionStore created session", "participantID", participantID)
	}
	return e
}

// WithSession runs fn with exclusive access to the participant's session,
// creating it on first contact. Calls for the same participant are serialized.
// The session's expiry is refreshed when fn returns.
func (st *SessionStore) WithSession(participantID string, fn func(s *models.Session) error) error {
	e := st.entry(participantID)
	e.mu.Lock()
	defer e.mu.Unlock()

	err := fn(e.session)

	st.mu.Lock()
	st.cache.Add(participantID, e)
	st.mu.Unlock()
	return err
}

// Snapshot returns a copy of the participant's session, if one exists.
func (st *SessionStore) Snapshot(participantID string) (models.Session, bool) {
	st.mu.Lock()
	e, ok := st.cache.Peek(participantID)
	st.mu.Unlock()
	if !ok {
		return models.Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *e.session
	cp.Answers = append([]string(nil), e.session.Answers...)
	return cp, true
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cache.Len()
}
