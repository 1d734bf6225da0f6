package pool

import (
	"context"
	"log"
)

// ensureMinimumSessions lazily tops up the idle list until the pool holds
// at least MinPoolSize sessions (idle + leased), stopping as soon as the
// pool is saturated rather than blocking.
func (p *ConnectionPool) ensureMinimumSessions(ctx context.Context) {
	for {
		extant := (p.permits.capacity() - p.permits.available()) + len(p.idleSnapshot())
		if extant >= p.settings.MinPoolSize {
			return
		}

		if !p.permits.tryAcquireTimeout(0) {
			return
		}

		sess, err := p.connectSession(ctx, nil)
		if err != nil {
			log.Printf("[pool] %s: ensureMinimumSessions: failed to create session: %v", p.name, err)
			p.permits.release()
			return
		}

		p.pushIdle(sess)
		p.publishGauges()
		p.permits.release()
	}
}
