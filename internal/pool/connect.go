package pool

import (
	"context"

	"github.com/sref/mysqlpool/internal/session"
	"github.com/sref/mysqlpool/pkg/connstring"
)

// connectSession establishes a new session bound to the pool's current
// generation, then honors any server-requested redirection before handing
// the session back to the caller.
func (p *ConnectionPool) connectSession(ctx context.Context, owner *Owner) (*session.Session, error) {
	id := p.lastSessionID.Add(1)
	gen := p.generation.Load()

	sess, status, err := p.connectFn(ctx, session.ConnectOptions{
		ID:         id,
		Generation: gen,
		Settings:   p.settings,
		Balancer:   p.balancer,
		StartTick:  nowTick(),
	})
	if err != nil {
		return nil, newError(p.name, KindConnectFailed, err)
	}

	target, redirected := session.ParseRedirect(status)
	if !redirected {
		if p.settings.ServerRedirectionMode == connstring.RedirectionRequired {
			_ = sess.Dispose()
			return nil, newError(p.name, KindRedirectionRequired, nil)
		}
		p.onConnected(sess)
		return sess, nil
	}

	if p.settings.ServerRedirectionMode == connstring.RedirectionDisabled {
		p.onConnected(sess)
		return sess, nil
	}

	if target.Host == p.settings.PrimaryHost() {
		// Already connected to the redirection target.
		p.onConnected(sess)
		return sess, nil
	}

	redirectedSettings := p.settings.WithEndpoint(target.Host, target.Port)
	redirectedSess, _, redirErr := p.connectFn(ctx, session.ConnectOptions{
		ID:         id,
		Generation: gen,
		Settings:   redirectedSettings,
		Balancer:   FailOverBalancer{},
		StartTick:  nowTick(),
	})
	if redirErr != nil {
		if p.settings.ServerRedirectionMode == connstring.RedirectionRequired {
			_ = sess.Dispose()
			return nil, newError(p.name, KindRedirectionRequired, redirErr)
		}
		// Preferred mode: the redirect target is unreachable, but the
		// original session is still good. Fall back to it instead of
		// failing the checkout.
		p.onConnected(sess)
		return sess, nil
	}

	_ = sess.Dispose()
	p.onConnected(redirectedSess)
	return redirectedSess, nil
}

// onConnected records the new session's host in the shared host-count
// map used by least-connections load balancing, when enabled.
func (p *ConnectionPool) onConnected(sess *session.Session) {
	if p.hostCounts != nil {
		p.hostCounts.Add(sess.Host(), 1)
	}
}
