package gateway

import "sync"

// Registry is the process-wide identity -> live session map. The connection
// lifecycle writes it on authenticate/disconnect; broadcasts read it. At
// most one session per identity is current: a later login under the same
// identity replaces the entry, and the replaced session is left to its own
// heartbeat fate (it is not closed here).
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Session
}

// Entry is one (identity, session) pair from a snapshot.
type Entry struct {
	UserID  string
	Session *Session
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Session)}
}

// Insert unconditionally associates identity with session, replacing any
// previous association.
func (r *Registry) Insert(userID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = s
}

// RemoveSession deletes the association only while it still points at s.
// A session that was replaced by a newer login must not evict its
// replacement when it finally times out.
func (r *Registry) RemoveSession(userID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byUser[userID]; ok && cur == s {
		delete(r.byUser, userID)
	}
}

// Get returns the current session for identity, if any.
func (r *Registry) Get(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUser[userID]
	return s, ok
}

// Snapshot copies the current entries so callers can fan out without
// holding the registry lock across sends.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.byUser))
	for uid, s := range r.byUser {
		out = append(out, Entry{UserID: uid, Session: s})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
