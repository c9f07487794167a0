// Package conversion implements the chainage<->coordinate conversation
// flow: a small per-source state machine that gathers a route and a
// chainage value (or a coordinate pair) across chat turns and answers via
// the corridor resolvers.
package conversion

import "sync"

// Mode selects the conversion direction.
type Mode string

const (
	ModeChainageToCoordinate Mode = "chainage_to_coordinate"
	ModeCoordinateToChainage Mode = "coordinate_to_chainage"
)

// Stage is the state-machine label within a mode.
type Stage string

const (
	StageAwaitingRoute     Stage = "awaiting_route_selection"
	StageAwaitingChainage  Stage = "awaiting_chainage_value"
	StageAwaitingLongitude Stage = "awaiting_longitude"
	StageAwaitingLatitude  Stage = "awaiting_latitude"
)

// Session is the ephemeral per-source conversion state. It lives from the
// trigger phrase until completion, cancellation, or supersession by a new
// trigger.
type Session struct {
	Mode      Mode
	Stage     Stage
	Corridor  string
	Longitude *float64
	Latitude  *float64
}

// SessionStore maps conversation-source IDs to sessions. It is injected
// into the machine rather than held as package state so tests can build
// isolated instances. The store itself is safe for concurrent use; turn
// ordering per source is the dispatcher's per-source lock.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Get returns the session for a source, or nil.
func (s *SessionStore) Get(sourceID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sourceID]
}

// Put stores (or replaces) the session for a source.
func (s *SessionStore) Put(sourceID string, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sourceID] = session
}

// Delete removes the session for a source.
func (s *SessionStore) Delete(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sourceID)
}
