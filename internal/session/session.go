// Package session implements the pool's Session collaborator: one live,
// authenticated MySQL connection, plus the bookkeeping the pool needs to
// decide whether a session is safe to hand back out.
//
// Everything below the "connect / try reset / dispose / is connected"
// surface is a black box as far as the pool is concerned — it happens to
// be backed by database/sql and github.com/go-sql-driver/mysql here, but
// the pool never reaches past the exported methods on Session.
package session

import (
	"database/sql"
	"sync"
)

// State is the session's lifecycle state as tracked by this package. The
// pool keeps its own idea of idle/leased in its own data structures; this
// is a narrower "is the wire connection itself usable" state.
type State int

const (
	StateIdle State = iota
	StateActive
	StateClosed
)

// Session wraps one physical MySQL connection.
type Session struct {
	mu sync.Mutex

	db *sql.DB

	id         uint64
	generation uint64
	host       string
	port       int

	createdTick      uint32
	lastReturnedTick uint32

	state     State
	connected bool
}

func newSession(id, generation uint64, host string, port int, db *sql.DB, createdTick uint32) *Session {
	return &Session{
		db:               db,
		id:               id,
		generation:       generation,
		host:             host,
		port:             port,
		createdTick:      createdTick,
		lastReturnedTick: createdTick,
		state:            StateActive,
		connected:        true,
	}
}

// ID returns the session's pool-scoped identifier.
func (s *Session) ID() uint64 { return s.id }

// Generation returns the pool generation this session was created under.
func (s *Session) Generation() uint64 { return s.generation }

// Host returns the server host this session is connected to.
func (s *Session) Host() string { return s.host }

// Port returns the server port this session is connected to.
func (s *Session) Port() int { return s.port }

// CreatedTick returns the tick at which the session was established.
func (s *Session) CreatedTick() uint32 { return s.createdTick }

// LastReturnedTick returns the tick at which the session was last
// returned to the pool.
func (s *Session) LastReturnedTick() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReturnedTick
}

// IsConnected reports whether the underlying transport is still believed
// to be live. It does not perform I/O.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// MarkReturned records the tick at which the session was handed back to
// the pool's idle list. Called by the pool, not by application code.
func (s *Session) MarkReturned(tick uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.lastReturnedTick = tick
}

// MarkLeased transitions the session back to active use.
func (s *Session) MarkLeased() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateActive
}

// Dispose closes the underlying connection. The pool swallows the error
// on its own return path but Dispose still reports it so callers that
// care (tests, explicit cleanup) can log it.
func (s *Session) Dispose() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.connected = false
	s.mu.Unlock()
	return s.db.Close()
}
