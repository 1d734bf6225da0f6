package pool

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sref/mysqlpool/internal/session"
	"github.com/sref/mysqlpool/pkg/connstring"
)

// newTestPool builds a pool whose session creation is faked out so
// bookkeeping (idle/leased transitions, generation checks, gauges,
// permits) can be exercised without a live MySQL server.
func newTestPool(settings *connstring.Settings) *ConnectionPool {
	p := New("test-pool", settings)
	p.connectFn = func(ctx context.Context, opts session.ConnectOptions) (*session.Session, string, error) {
		host := opts.Settings.Hosts[0]
		sess, err := session.NewFake(opts.ID, opts.Generation, host, opts.Settings.Port, nowTick())
		if err != nil {
			return nil, "", err
		}
		return sess, "", nil
	}
	return p
}

func idleCount(p *ConnectionPool) int   { return len(p.idleSnapshot()) }
func leasedCount(p *ConnectionPool) int { return len(p.leasedSnapshot()) }

// S1 — basic lease/return and idle reuse.
func TestCheckoutReturnReuse(t *testing.T) {
	settings := &connstring.Settings{Hosts: []string{"h1"}, Port: 3306, MaxPoolSize: 2}
	p := newTestPool(settings)
	defer p.Dispose(context.Background())

	owner1 := NewOwner()
	s1, err := p.Checkout(context.Background(), owner1, nowTick(), ModeAsync)
	require.NoError(t, err)
	assert.Equal(t, 0, idleCount(p))
	assert.Equal(t, 1, leasedCount(p))

	owner2 := NewOwner()
	s2, err := p.Checkout(context.Background(), owner2, nowTick(), ModeAsync)
	require.NoError(t, err)
	assert.Equal(t, 0, idleCount(p))
	assert.Equal(t, 2, leasedCount(p))

	p.Return(s1, ModeAsync)
	assert.Equal(t, 1, idleCount(p))
	assert.Equal(t, 1, leasedCount(p))

	owner3 := NewOwner()
	s3, err := p.Checkout(context.Background(), owner3, nowTick(), ModeAsync)
	require.NoError(t, err)
	assert.Equal(t, s1.ID(), s3.ID(), "checkout should reuse the returned session")
	assert.Equal(t, 0, idleCount(p))
	assert.Equal(t, 2, leasedCount(p))

	runtime.KeepAlive(owner1)
	runtime.KeepAlive(owner2)
	runtime.KeepAlive(owner3)
	_ = s2
}

// S3 — permit saturation and cancellation.
func TestCheckoutSaturationCancelled(t *testing.T) {
	settings := &connstring.Settings{Hosts: []string{"h1"}, Port: 3306, MaxPoolSize: 1}
	p := newTestPool(settings)
	defer p.Dispose(context.Background())

	owner1 := NewOwner()
	s1, err := p.Checkout(context.Background(), owner1, nowTick(), ModeAsync)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	owner2 := NewOwner()
	_, err = p.Checkout(ctx, owner2, nowTick(), ModeAsync)
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindPoolExhaustedTimeout, perr.Kind)

	assert.Equal(t, 0, idleCount(p))
	assert.Equal(t, 1, leasedCount(p))
	assert.Equal(t, 0, p.permits.available())

	runtime.KeepAlive(owner1)
	runtime.KeepAlive(owner2)
	_ = s1
}

// S4 — clear mid-flight discards the stale-generation idle session.
func TestClearDiscardsStaleIdleSession(t *testing.T) {
	settings := &connstring.Settings{Hosts: []string{"h1"}, Port: 3306, MaxPoolSize: 2}
	p := newTestPool(settings)
	defer p.Dispose(context.Background())

	owner1 := NewOwner()
	s1, err := p.Checkout(context.Background(), owner1, nowTick(), ModeAsync)
	require.NoError(t, err)
	p.Return(s1, ModeAsync)
	require.Equal(t, 1, idleCount(p))

	require.NoError(t, p.Clear(context.Background(), ModeAsync))
	assert.Equal(t, 0, idleCount(p))
	assert.Equal(t, 2, p.permits.available())

	owner2 := NewOwner()
	s2, err := p.Checkout(context.Background(), owner2, nowTick(), ModeAsync)
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Equal(t, uint64(1), s2.Generation())

	runtime.KeepAlive(owner1)
	runtime.KeepAlive(owner2)
}

// S6 — reaper respects minimum pool size.
func TestReapRespectsMinimum(t *testing.T) {
	settings := &connstring.Settings{
		Hosts:       []string{"h1"},
		Port:        3306,
		MinPoolSize: 2,
		MaxPoolSize: 4,
		IdleTimeout: 50 * time.Millisecond,
	}
	p := newTestPool(settings)
	defer p.Dispose(context.Background())

	var owners []*Owner
	var sessions []*session.Session
	for i := 0; i < 4; i++ {
		o := NewOwner()
		s, err := p.Checkout(context.Background(), o, nowTick(), ModeAsync)
		require.NoError(t, err)
		owners = append(owners, o)
		sessions = append(sessions, s)
	}
	for _, s := range sessions {
		p.Return(s, ModeAsync)
	}
	require.Equal(t, 4, idleCount(p))

	time.Sleep(80 * time.Millisecond)
	require.NoError(t, p.Reap(context.Background(), ModeAsync))
	assert.Equal(t, 2, idleCount(p))

	for _, o := range owners {
		runtime.KeepAlive(o)
	}
}

// S5 — a leaked session (owning handle dropped without Return) is
// reclaimed by the next saturating checkout's leak scan.
func TestLeakRecoveryReclaimsDroppedOwner(t *testing.T) {
	settings := &connstring.Settings{Hosts: []string{"h1"}, Port: 3306, MaxPoolSize: 1}
	p := newTestPool(settings)
	defer p.Dispose(context.Background())

	func() {
		owner := NewOwner()
		_, err := p.Checkout(context.Background(), owner, nowTick(), ModeAsync)
		require.NoError(t, err)
	}()

	p.leasedMu.Lock()
	var entry *leasedEntry
	for _, e := range p.leased {
		entry = e
	}
	p.leasedMu.Unlock()
	require.NotNil(t, entry)

	for i := 0; i < 20 && entry.owner.resolve() != nil; i++ {
		runtime.GC()
	}
	require.Nil(t, entry.owner.resolve(), "owner should have been collected")

	p.lastLeakScanTick.Store(0)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	owner2 := NewOwner()
	s2, err := p.Checkout(ctx, owner2, nowTick(), ModeAsync)
	require.NoError(t, err)
	assert.NotNil(t, s2)

	runtime.KeepAlive(owner2)
}
