package pool

import (
	"context"
	"log"
	"time"

	"github.com/sref/mysqlpool/internal/session"
)

// cleanPoolTryTimeout bounds how long cleanPool waits for an opportunistic
// permit before concluding the pool is saturated and backing off.
const cleanPoolTryTimeout = 10 * time.Millisecond

// cleanPool is serialized via cleanMu. It repeatedly pops the oldest idle
// session and disposes it if predicate matches, stopping at the first
// non-match since the idle list is oldest-first from the back.
func (p *ConnectionPool) cleanPool(ctx context.Context, predicate func(*session.Session) bool, respectMin bool) error {
	p.cleanMu.Lock()
	defer p.cleanMu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return newError(p.name, KindCancelled, err)
		}

		if respectMin {
			extant := (p.permits.capacity() - p.permits.available()) + len(p.idleSnapshot())
			if extant <= p.settings.MinPoolSize {
				return nil
			}
		}

		if !p.permits.tryAcquireTimeout(cleanPoolTryTimeout) {
			return nil
		}

		sess := p.popOldestIdle()
		if sess == nil {
			p.permits.release()
			return nil
		}
		p.publishGauges()

		if predicate(sess) {
			if p.hostCounts != nil {
				p.hostCounts.Add(sess.Host(), -1)
			}
			if err := sess.Dispose(); err != nil {
				log.Printf("[pool] %s: error disposing cleaned session %d: %v", p.name, sess.ID(), err)
			}
			p.permits.release()
			continue
		}

		p.pushOldestIdleBack(sess)
		p.publishGauges()
		p.permits.release()
		return nil
	}
}

// popOldestIdle removes and returns the least-recently-returned idle
// session — the back of the list, since the front is push/popped for
// checkout reuse.
func (p *ConnectionPool) popOldestIdle() *session.Session {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	n := len(p.idle)
	if n == 0 {
		return nil
	}
	sess := p.idle[n-1]
	p.idle = p.idle[:n-1]
	return sess
}

// pushOldestIdleBack restores a session that did not match the clean
// predicate to the back of the idle list, where it was popped from.
func (p *ConnectionPool) pushOldestIdleBack(sess *session.Session) {
	p.idleMu.Lock()
	p.idle = append(p.idle, sess)
	p.idleMu.Unlock()
}
