package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/sref/mysqlpool/pkg/connstring"
)

// HostOrderer is the subset of the pool's LoadBalancer the collaborator
// needs: given the pool's configured host list, return the order in which
// to attempt them. Defined here (rather than imported from the pool
// package) so this package has no dependency on the pool.
type HostOrderer interface {
	Order(hosts []string) []string
}

// ConnectOptions carries everything Connect needs to establish a new
// session: the id and generation it will be bound to, the settings and
// load balancer that pick which host to dial, and the tick to stamp it
// created at.
type ConnectOptions struct {
	ID         uint64
	Generation uint64
	Settings   *connstring.Settings
	Balancer   HostOrderer
	StartTick  uint32
}

// redirectPrefix is the status-string prefix the pool watches for after a
// successful connect.
const redirectPrefix = "Location: mysql://"

// Connect dials the pool's configured hosts, in the order the load
// balancer prescribes, until one succeeds. It returns the new session and
// a possibly-empty redirection status string.
//
// The real MySQL wire protocol communicates server-side redirection via a
// session state change in the OK packet, which database/sql does not
// surface. This collaborator simulates it: on connect, it asks the server
// for the session variable `redirect_uri` (a convention some MySQL Router
// deployments use for read/write splitting) and treats "unknown system
// variable" as no redirection.
func Connect(ctx context.Context, opts ConnectOptions) (*Session, string, error) {
	hosts := opts.Balancer.Order(opts.Settings.Hosts)
	if len(hosts) == 0 {
		return nil, "", errors.New("session: no hosts configured")
	}

	var lastErr error
	for _, host := range hosts {
		sess, status, err := dial(ctx, opts, host)
		if err == nil {
			return sess, status, nil
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("session: all hosts failed, last error: %w", lastErr)
}

func dial(ctx context.Context, opts ConnectOptions, host string) (*Session, string, error) {
	cfg := mysqldriver.NewConfig()
	cfg.User = opts.Settings.User
	cfg.Passwd = opts.Settings.Password
	cfg.DBName = opts.Settings.Database
	cfg.Params = map[string]string{}

	switch opts.Settings.Protocol {
	case connstring.ProtocolTCP:
		cfg.Net = "tcp"
		cfg.Addr = host + ":" + strconv.Itoa(opts.Settings.Port)
	case connstring.ProtocolUnix:
		cfg.Net = "unix"
		cfg.Addr = host
	case connstring.ProtocolNamedPipe:
		return nil, "", errors.New("session: named-pipe protocol is not supported by the MySQL collaborator")
	default:
		return nil, "", fmt.Errorf("session: unknown protocol %v", opts.Settings.Protocol)
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, "", fmt.Errorf("session: sql.Open: %w", err)
	}

	// Each Session maps 1:1 to a physical connection — the pool, not
	// database/sql, owns pooling policy.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("session: ping %s: %w", host, err)
	}

	status := queryRedirectStatus(ctx, db)

	createdTick := uint32(time.Now().UnixMilli())
	sess := newSession(opts.ID, opts.Generation, host, opts.Settings.Port, db, createdTick)
	return sess, status, nil
}

func queryRedirectStatus(ctx context.Context, db *sql.DB) string {
	var uri sql.NullString
	err := db.QueryRowContext(ctx, "SELECT @@session.redirect_uri").Scan(&uri)
	if err != nil {
		// Unknown system variable (1193) or any other failure just means
		// this server does not advertise a redirect target.
		return ""
	}
	if !uri.Valid || uri.String == "" {
		return ""
	}
	if strings.HasPrefix(uri.String, "mysql://") {
		return "Location: " + uri.String
	}
	return ""
}

// RedirectTarget is the parsed form of a "Location: mysql://host:port/user?ttl=n" status.
type RedirectTarget struct {
	Host string
	Port int
	User string
	TTL  time.Duration
}

// ParseRedirect parses a connect status string. ok is false when status
// does not carry a redirection header.
func ParseRedirect(status string) (target RedirectTarget, ok bool) {
	if !strings.HasPrefix(status, redirectPrefix) {
		return RedirectTarget{}, false
	}
	rest := strings.TrimPrefix(status, redirectPrefix)

	var query string
	if i := strings.Index(rest, "?"); i >= 0 {
		rest, query = rest[:i], rest[i+1:]
	}

	userHost := rest
	if i := strings.Index(rest, "/"); i >= 0 {
		userHost, target.User = rest[:i], rest[i+1:]
	}

	host, portStr, hasPort := strings.Cut(userHost, ":")
	target.Host = host
	if hasPort {
		if p, err := strconv.Atoi(portStr); err == nil {
			target.Port = p
		}
	}

	if query != "" {
		for _, kv := range strings.Split(query, "&") {
			k, v, _ := strings.Cut(kv, "=")
			if k == "ttl" {
				if n, err := strconv.Atoi(v); err == nil {
					target.TTL = time.Duration(n) * time.Second
				}
			}
		}
	}

	if target.Host == "" {
		return RedirectTarget{}, false
	}
	return target, true
}
