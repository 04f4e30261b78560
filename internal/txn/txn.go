// Package txn runs engagement mutations as all-or-nothing database
// transactions and absorbs transient storage contention with a bounded,
// jittered exponential backoff.
//
// A transaction body returns:
//   - nil to commit;
//   - an error classified by IsTransient (ErrConflict, SQLite busy/locked,
//     PostgreSQL serialization failure or deadlock) to roll back and retry;
//   - any other error to roll back and return it unchanged.
//
// When every attempt fails transiently, Run returns an error matching both
// ErrTransient and the last underlying error.
package txn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-design-engagement/internal/observability"
	"github.com/tbourn/go-design-engagement/internal/repo"
)

var (
	// ErrTransient reports that a transaction kept conflicting until the
	// attempt budget was spent.
	ErrTransient = errors.New("transient storage conflict")

	// ErrConflict marks a write that lost a race with a concurrent
	// transaction (unique violation, stale conditional update). It is always
	// retried.
	ErrConflict = errors.New("write conflict")
)

// Defaults used when Options leaves a field zero.
const (
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = 10 * time.Millisecond
	DefaultMaxBackoff  = 250 * time.Millisecond
)

// PostgreSQL SQLSTATE codes worth retrying.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// Options bounds the retry loop.
type Options struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Manager executes transaction bodies against DB.
type Manager struct {
	DB   *gorm.DB
	opts Options
	// txOpts is nil for SQLite (the single-writer pool already serializes)
	// and READ COMMITTED for PostgreSQL: counter updates are atomic
	// in-place increments, likes are guarded by their unique key and the
	// boost ledger advances with a conditional update.
	txOpts *sql.TxOptions
}

// New returns a Manager for db. PostgreSQL handles get READ COMMITTED
// isolation.
func New(db *gorm.DB, opt Options) *Manager {
	if opt.MaxAttempts <= 0 {
		opt.MaxAttempts = DefaultMaxAttempts
	}
	if opt.BaseBackoff <= 0 {
		opt.BaseBackoff = DefaultBaseBackoff
	}
	if opt.MaxBackoff < opt.BaseBackoff {
		opt.MaxBackoff = DefaultMaxBackoff
		if opt.MaxBackoff < opt.BaseBackoff {
			opt.MaxBackoff = opt.BaseBackoff
		}
	}
	m := &Manager{DB: db, opts: opt}
	if repo.IsPostgres(db) {
		m.txOpts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return m
}

// MaxAttempts reports the configured attempt budget.
func (m *Manager) MaxAttempts() int { return m.opts.MaxAttempts }

// Run executes fn inside a transaction, retrying transient failures. op
// names the operation in logs and the retry metric.
func (m *Manager) Run(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.opts.BaseBackoff
	eb.MaxInterval = m.opts.MaxBackoff

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		var txErr error
		if m.txOpts != nil {
			txErr = m.DB.WithContext(ctx).Transaction(fn, m.txOpts)
		} else {
			txErr = m.DB.WithContext(ctx).Transaction(fn)
		}
		if txErr == nil {
			return struct{}{}, nil
		}
		if IsTransient(txErr) {
			return struct{}{}, txErr
		}
		return struct{}{}, backoff.Permanent(txErr)
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(m.opts.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			observability.TxRetries.WithLabelValues(op).Inc()
			log.Ctx(ctx).Debug().Err(err).Str("op", op).Dur("backoff", next).Msg("retrying transaction")
		}),
	)
	if err == nil {
		return nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if IsTransient(err) {
		log.Ctx(ctx).Warn().Err(err).Str("op", op).Int("attempts", attempts).Msg("transaction retries exhausted")
		return fmt.Errorf("%s: %w after %d attempts: %w", op, ErrTransient, attempts, err)
	}
	return err
}

// IsTransient reports whether err is worth retrying in a new transaction.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "database is locked") ||
		strings.Contains(low, "database table is locked") ||
		strings.Contains(low, "sqlite_busy") ||
		strings.Contains(low, "sqlite_locked")
}
