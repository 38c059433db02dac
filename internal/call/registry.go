package call

import (
	"errors"
	"sync"
)

var (
	ErrSessionExists   = errors.New("call: session already exists")
	ErrSessionNotFound = errors.New("call: session not found")
)

// Registry is the process-wide map of live calls. It exclusively owns
// session lifetime: creation on the transport's start event, removal on its
// stop event, nothing in between.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a new session for callID. A duplicate start for a live
// call id is rejected and the existing session, with its original caller
// context, is left untouched.
func (r *Registry) Create(callID, streamSID string, caller CallerContext) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[callID]; ok {
		return nil, ErrSessionExists
	}

	session := newSession(callID, streamSID, caller)
	r.sessions[callID] = session
	return session, nil
}

// Get looks up a live session.
func (r *Registry) Get(callID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[callID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Remove deletes the session for callID and returns it so the caller can
// read final state for teardown bookkeeping. The id is immediately free for
// a fresh Create.
func (r *Registry) Remove(callID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[callID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(r.sessions, callID)
	return session, nil
}

// Release removes the entry for s.ID only when it still maps to s. A
// teardown racing a fresh call that reuses the id therefore never evicts the
// newer session.
func (r *Registry) Release(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[s.ID]; ok && current == s {
		delete(r.sessions, s.ID)
		return true
	}
	return false
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
