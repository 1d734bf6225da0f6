package pool

import (
	"context"
	"log"
	"runtime"

	"github.com/sref/mysqlpool/internal/session"
)

// runLeakScan reclaims leased sessions whose owning handle has been
// garbage collected without a matching Return.
func (p *ConnectionPool) runLeakScan(ctx context.Context, mode IOMode) {
	p.lastLeakScanTick.Store(nowTick())

	type recovered struct {
		id          uint64
		session     *session.Session
		placeholder *Owner
	}

	p.leasedMu.Lock()
	var toReturn []recovered
	for id, entry := range p.leased {
		if entry.owner.resolve() != nil {
			continue
		}
		// Swap in a synthetic placeholder so a concurrent scan can't
		// double-handle this entry while we return it outside the lock.
		// The placeholder is held strongly until Return has completed.
		placeholder := NewOwner()
		entry.owner = newWeakOwner(placeholder)
		toReturn = append(toReturn, recovered{id: id, session: entry.session, placeholder: placeholder})
	}
	p.leasedMu.Unlock()

	for _, r := range toReturn {
		log.Printf("[pool] %s: reclaiming leaked session %d", p.name, r.id)
		p.Return(r.session, mode)
		runtime.KeepAlive(r.placeholder)
	}
}
