package store

import (
	"context"
	"database/sql"
	"time"
)

// DefaultQueryTimeout bounds every repository call, including the wait for a
// pooled connection.
const DefaultQueryTimeout = 5 * time.Second

// Conn is the shared handle used by the repositories.
type Conn struct {
	db      *sql.DB
	timeout time.Duration
}

func NewConn(db *sql.DB, timeout time.Duration) *Conn {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Conn{db: db, timeout: timeout}
}

// Ping verifies the store is reachable.
func (c *Conn) Ping(ctx context.Context) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.db.PingContext(ctx)
}

func (c *Conn) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// WithTx executes fn within a transaction, committing only when fn succeeds.
func (c *Conn) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
