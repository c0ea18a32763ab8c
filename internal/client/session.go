package client

import "sync"

// Session is the process-wide authenticated session. It is initialised by a
// successful login and torn down by logout or by any AuthError.
type Session struct {
	mu        sync.RWMutex
	token     string
	username  string
	active    bool
	listeners []func(reason error)
}

func NewSession() *Session {
	return &Session{}
}

// Init activates the session with the token issued by the agent
func (s *Session) Init(token, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.username = username
	s.active = true
}

// Teardown clears the session. Listeners run once per active->inactive
// transition, outside the lock; reason is nil for an explicit logout.
func (s *Session) Teardown(reason error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.token = ""
	s.username = ""
	s.active = false
	listeners := append([]func(error){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(reason)
	}
}

// OnTeardown registers fn to be called whenever the session ends
func (s *Session) OnTeardown(fn func(reason error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}
