package session

import (
	"database/sql"
	"fmt"
)

// NewFake builds a Session around a *sql.DB that has never dialed the
// network — sql.Open with the mysql driver only parses the DSN, it does
// not connect. This lets pool-level tests exercise checkout/return
// bookkeeping (idle/leased transitions, generation checks, disposal)
// without a live MySQL server. Anything that actually uses the
// connection (TryReset, queries) still performs real I/O and will fail
// without one.
func NewFake(id, generation uint64, host string, port int, createdTick uint32) (*Session, error) {
	db, err := sql.Open("mysql", fmt.Sprintf("fake:fake@tcp(%s:%d)/fake", host, port))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return newSession(id, generation, host, port, db, createdTick), nil
}
