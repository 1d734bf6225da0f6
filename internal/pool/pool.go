// Package pool implements the bounded session pool at the core of the
// MySQL client library: checkout, return, clear, reap, and the
// background maintenance that keeps a pool healthy as servers restart,
// DNS records change, and callers leak sessions.
package pool

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sref/mysqlpool/internal/metrics"
	"github.com/sref/mysqlpool/internal/session"
	"github.com/sref/mysqlpool/pkg/connstring"
)

// leakScanInterval is the minimum gap between leak-recovery scans
// triggered by a saturated checkout.
const leakScanInterval = 1000 * time.Millisecond

// leasedEntry pairs a leased session with the weak reference to the
// logical-connection handle currently holding it.
type leasedEntry struct {
	session *session.Session
	owner   weakOwner
}

// ConnectionPool is a bounded pool of MySQL sessions for one normalized
// connection string.
type ConnectionPool struct {
	name     string
	settings *connstring.Settings
	sink     *metrics.Sink
	balancer LoadBalancer
	hostCounts *HostCounts

	generation atomic.Uint64

	idleMu sync.Mutex
	idle   []*session.Session // front = most recently returned

	leasedMu sync.Mutex
	leased   map[uint64]*leasedEntry

	permits semaphore

	cleanMu sync.Mutex

	lastLeakScanTick atomic.Uint32
	lastSessionID    atomic.Uint64

	procCache atomic.Pointer[ProcedureCache]

	pendingRequests atomic.Int64

	stopCh   chan struct{}
	bgWG     sync.WaitGroup
	disposed atomic.Bool

	// connectFn dials a new session. It is overridden in tests so pool
	// bookkeeping can be exercised without a live MySQL server; production
	// callers always get session.Connect via New.
	connectFn func(ctx context.Context, opts session.ConnectOptions) (*session.Session, string, error)
}

// New constructs a pool for settings, wiring the load balancer the
// settings request and, for least-connections, a shared host-count map.
func New(name string, settings *connstring.Settings) *ConnectionPool {
	p := &ConnectionPool{
		name:     name,
		settings: settings,
		sink:     metrics.NewSink(name),
		leased:   make(map[uint64]*leasedEntry),
		permits:  newSemaphore(settings.MaxPoolSize),
		stopCh:   make(chan struct{}),
	}
	p.connectFn = session.Connect
	p.procCache.Store(newProcedureCache())

	switch settings.LoadBalance {
	case connstring.LoadBalanceRoundRobin:
		p.balancer = NewRoundRobinBalancer()
	case connstring.LoadBalanceRandom:
		p.balancer = NewRandomBalancer()
	case connstring.LoadBalanceLeastConnections:
		p.hostCounts = NewHostCounts()
		p.balancer = NewLeastConnectionsBalancer(p.hostCounts)
	default:
		p.balancer = FailOverBalancer{}
	}

	p.sink.SetConfigured(settings.MinPoolSize, settings.MaxPoolSize, settings.MaxPoolSize)
	return p
}

// Name returns the pool's display name, used as its metric/log label.
func (p *ConnectionPool) Name() string { return p.name }

// nowTick returns the current wall-clock tick used throughout the pool
// for created/last-returned bookkeeping and lifetime/idle comparisons.
func nowTick() uint32 {
	return uint32(time.Now().UnixMilli())
}

// Checkout hands out a session, creating one if none is idle and the
// pool has not reached its configured maximum.
func (p *ConnectionPool) Checkout(ctx context.Context, owner *Owner, startTick uint32, mode IOMode) (*session.Session, error) {
	ctx = resolveContext(ctx, mode)

	if err := ctx.Err(); err != nil {
		return nil, newError(p.name, KindCancelled, err)
	}

	if p.permits.available() == 0 && nowTick()-p.lastLeakScanTick.Load() >= uint32(leakScanInterval.Milliseconds()) {
		p.runLeakScan(ctx, mode)
	}

	if p.settings.MinPoolSize > 0 {
		p.ensureMinimumSessions(ctx)
	}

	waitStart := time.Now()
	if err := p.permits.acquire(ctx); err != nil {
		return nil, newError(p.name, KindPoolExhaustedTimeout, err)
	}

	sess, err := p.checkoutWithPermit(ctx, owner, startTick, waitStart)
	if err != nil {
		p.permits.release()
		return nil, err
	}
	return sess, nil
}

// checkoutWithPermit runs steps 5-8 of the checkout contract once a
// permit has been acquired. The caller releases the permit on error.
func (p *ConnectionPool) checkoutWithPermit(ctx context.Context, owner *Owner, startTick uint32, waitStart time.Time) (*session.Session, error) {
	if idleSess := p.popIdle(); idleSess != nil {
		sess, ok, err := p.decideReuse(ctx, idleSess)
		if err != nil {
			return nil, err
		}
		if ok {
			p.lease(sess, owner)
			p.sink.ObserveWaitTime(time.Since(waitStart))
			p.publishGauges()
			return sess, nil
		}
		// discard path already disposed idleSess and adjusted host count; fall through to create.
	}

	createStart := time.Now()
	sess, err := p.connectSession(ctx, owner)
	if err != nil {
		return nil, err
	}
	p.lease(sess, owner)
	p.sink.ObserveCreateTime(time.Since(createStart))
	p.publishGauges()
	return sess, nil
}

// decideReuse implements checkout step 6: decide whether a popped idle
// session may be reused as-is, after a reset, or must be discarded.
func (p *ConnectionPool) decideReuse(ctx context.Context, sess *session.Session) (*session.Session, bool, error) {
	if sess.Generation() != p.generation.Load() {
		p.discardIdle(sess)
		return nil, false, nil
	}

	if p.settings.ConnectionReset {
		if err := sess.TryReset(ctx); err != nil {
			p.discardIdle(sess)
			return nil, false, nil
		}
	}

	sess.MarkLeased()
	return sess, true, nil
}

// discardIdle disposes a session that was popped from the idle list but
// turned out to be unfit for reuse, adjusting host counts accordingly.
func (p *ConnectionPool) discardIdle(sess *session.Session) {
	if p.hostCounts != nil {
		p.hostCounts.Add(sess.Host(), -1)
	}
	if err := sess.Dispose(); err != nil {
		log.Printf("[pool] %s: error disposing discarded idle session %d: %v", p.name, sess.ID(), err)
	}
}

// lease attaches an owner and moves sess into leased_sessions.
func (p *ConnectionPool) lease(sess *session.Session, owner *Owner) {
	sess.MarkLeased()
	p.leasedMu.Lock()
	p.leased[sess.ID()] = &leasedEntry{session: sess, owner: newWeakOwner(owner)}
	p.leasedMu.Unlock()
}

// Return hands a session back to the pool. Infallible from the caller's
// perspective: failures are logged, never returned.
func (p *ConnectionPool) Return(sess *session.Session, mode IOMode) {
	p.leasedMu.Lock()
	delete(p.leased, sess.ID())
	p.leasedMu.Unlock()

	health := p.sessionHealth(sess)
	if health == sessionHealthy {
		sess.MarkReturned(nowTick())
		p.pushIdle(sess)
	} else {
		if p.hostCounts != nil {
			p.hostCounts.Add(sess.Host(), -1)
		}
		if err := sess.Dispose(); err != nil {
			log.Printf("[pool] %s: error disposing returned session %d: %v", p.name, sess.ID(), err)
		}
	}

	p.permits.release()
	p.publishGauges()
}

type sessionHealthKind int

const (
	sessionHealthy sessionHealthKind = iota
	sessionHealthDisconnected
	sessionHealthStaleGeneration
	sessionHealthLifetimeExceeded
)

func (p *ConnectionPool) sessionHealth(sess *session.Session) sessionHealthKind {
	if !sess.IsConnected() {
		return sessionHealthDisconnected
	}
	if sess.Generation() != p.generation.Load() {
		return sessionHealthStaleGeneration
	}
	if p.settings.ConnectionLifetime > 0 {
		age := time.Duration(nowTick()-sess.CreatedTick()) * time.Millisecond
		if age >= p.settings.ConnectionLifetime {
			return sessionHealthLifetimeExceeded
		}
	}
	return sessionHealthy
}

// Clear bumps the pool generation, drops the procedure cache, runs a
// leak scan, and cleans every now-stale idle session.
func (p *ConnectionPool) Clear(ctx context.Context, mode IOMode) error {
	ctx = resolveContext(ctx, mode)

	p.generation.Add(1)
	p.procCache.Store(newProcedureCache())

	p.runLeakScan(ctx, mode)

	gen := p.generation.Load()
	predicate := func(sess *session.Session) bool {
		return sess.Generation() != gen
	}
	return p.cleanPool(ctx, predicate, false)
}

// Reap runs a leak scan and then evicts idle sessions that have exceeded
// the configured idle timeout, respecting minimum pool size. See spec
// §4.1 "reap".
func (p *ConnectionPool) Reap(ctx context.Context, mode IOMode) error {
	ctx = resolveContext(ctx, mode)

	p.runLeakScan(ctx, mode)

	timeoutMillis := uint32(p.settings.IdleTimeout.Milliseconds())
	predicate := func(sess *session.Session) bool {
		return nowTick()-sess.LastReturnedTick() >= timeoutMillis
	}
	return p.cleanPool(ctx, predicate, true)
}

// Dispose stops background maintenance and releases the pool's
// configuration gauges. It deliberately does not close idle sessions —
// a process-wide shutdown hook performs one final Clear across every
// pool instead.
func (p *ConnectionPool) Dispose(ctx context.Context) error {
	if !p.disposed.CompareAndSwap(false, true) {
		return nil
	}
	close(p.stopCh)
	p.bgWG.Wait()

	metrics.NewSink(p.name).SetConfigured(0, 0, 0)
	return nil
}

// AddPendingRequestCount adjusts the pending-checkout-requests gauge,
// exposed so higher layers (e.g. a request queue ahead of the pool) can
// report backpressure.
func (p *ConnectionPool) AddPendingRequestCount(delta int) {
	p.pendingRequests.Add(int64(delta))
	p.sink.AddPendingRequests(delta)
}

// ProcedureCache returns the pool's current prepared-statement cache.
// The pointer may be swapped out from under the caller by a concurrent
// Clear; see DESIGN.md for the open-question decision on this.
func (p *ConnectionPool) ProcedureCache() *ProcedureCache {
	return p.procCache.Load()
}

func (p *ConnectionPool) popIdle() *session.Session {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	if len(p.idle) == 0 {
		return nil
	}
	sess := p.idle[0]
	p.idle = p.idle[1:]
	return sess
}

func (p *ConnectionPool) pushIdle(sess *session.Session) {
	p.idleMu.Lock()
	p.idle = append([]*session.Session{sess}, p.idle...)
	p.idleMu.Unlock()
}

func (p *ConnectionPool) idleSnapshot() []*session.Session {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	out := make([]*session.Session, len(p.idle))
	copy(out, p.idle)
	return out
}

func (p *ConnectionPool) leasedSnapshot() []*session.Session {
	p.leasedMu.Lock()
	defer p.leasedMu.Unlock()
	out := make([]*session.Session, 0, len(p.leased))
	for _, e := range p.leased {
		out = append(out, e.session)
	}
	return out
}

// publishGauges recomputes and republishes the idle/used gauges as one
// unit, matching the "atomic pair of counter updates" ordering guarantee.
func (p *ConnectionPool) publishGauges() {
	p.idleMu.Lock()
	idle := len(p.idle)
	p.idleMu.Unlock()

	p.leasedMu.Lock()
	used := len(p.leased)
	p.leasedMu.Unlock()

	p.sink.SetGauges(idle, used)
}
