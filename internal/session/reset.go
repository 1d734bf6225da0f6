package session

import (
	"context"
	"fmt"
)

// TryReset verifies that a returned session is still usable before the
// pool hands it back out of the idle list. A failed reset marks the
// session disconnected so the pool discards it instead of reusing it.
func (s *Session) TryReset(ctx context.Context) error {
	s.mu.Lock()
	db := s.db
	closed := s.state == StateClosed
	s.mu.Unlock()

	if closed {
		return fmt.Errorf("session: reset on closed session %d", s.id)
	}

	if err := db.PingContext(ctx); err != nil {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		return fmt.Errorf("session: reset ping failed: %w", err)
	}

	if err := resetSessionState(ctx, s); err != nil {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		return fmt.Errorf("session: reset query failed: %w", err)
	}

	return nil
}

// resetSessionState issues a round trip beyond the ping to confirm the
// server is actually executing statements, not just accepting TCP bytes.
func resetSessionState(ctx context.Context, s *Session) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()

	_, err := db.ExecContext(ctx, "DO 1")
	return err
}
