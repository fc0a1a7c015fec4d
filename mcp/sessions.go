package mcp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	globalconfig "velora/config"
)

var errInvalidSessionID = errors.New("invalid session id")

// IdleSessions is a server.SessionIdManager that expires sessions after a
// period without requests. Clients never have to close a session; an
// expired or unknown id is reported as terminated, which the streamable
// HTTP transport answers with 404 so the client re-initializes.
type IdleSessions struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func NewIdleSessions(ttl time.Duration) *IdleSessions {
	return &IdleSessions{
		ttl:      ttl,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
}

func (s *IdleSessions) Generate() string {
	id := uuid.NewString()

	s.mu.Lock()
	s.lastSeen[id] = s.now()
	s.mu.Unlock()

	return id
}

// Validate touches a live session. Malformed ids are an error (400);
// unknown or expired ids are terminated (404).
func (s *IdleSessions) Validate(sessionID string) (bool, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return false, errInvalidSessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen, ok := s.lastSeen[sessionID]
	switch {
	case !ok:
		return true, nil
	case s.expired(seen):
		delete(s.lastSeen, sessionID)
		return true, nil
	}

	s.lastSeen[sessionID] = s.now()
	return false, nil
}

func (s *IdleSessions) Terminate(sessionID string) (bool, error) {
	s.mu.Lock()
	delete(s.lastSeen, sessionID)
	s.mu.Unlock()
	return false, nil
}

// Len reports the number of live sessions.
func (s *IdleSessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lastSeen)
}

// Sweep drops every expired session and returns how many were removed.
func (s *IdleSessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, seen := range s.lastSeen {
		if s.expired(seen) {
			delete(s.lastSeen, id)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until ctx is cancelled.
func (s *IdleSessions) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 && globalconfig.DebugLog != nil {
				globalconfig.DebugLog.Printf("[MCP] expired %d idle session(s)", n)
			}
		}
	}
}

func (s *IdleSessions) expired(seen time.Time) bool {
	return s.ttl > 0 && s.now().Sub(seen) > s.ttl
}
