package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG is a PostgreSQL-backed limiter: failures inside a sliding window are
// counted per key, and reaching the threshold locks the key for a while.
type PG struct {
	db       pgxQuerier
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a limiter over any pgx querier (a pool, or a mock in tests).
func NewPG(q pgxQuerier, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	return &PG{db: q, window: window, maxFails: maxFails, blockFor: blockFor, now: time.Now}
}

// Allow reports whether the key is currently unlocked.
func (l *PG) Allow(ctx context.Context, email string, ipHash []byte) (Decision, error) {
	const q = `SELECT blocked_until FROM login_attempts WHERE email=$1 AND ip_hash=$2`
	var blockedUntil time.Time
	err := l.db.QueryRow(ctx, q, email, ipHash).Scan(&blockedUntil)
	switch {
	case err == nil:
		if now := l.now(); blockedUntil.After(now) {
			return Decision{RetryAfter: blockedUntil.Sub(now)}, nil
		}
		return Decision{Allowed: true}, nil
	case errors.Is(err, pgx.ErrNoRows):
		return Decision{Allowed: true}, nil
	default:
		return Decision{}, err
	}
}

// Success resets the counters for the key.
func (l *PG) Success(ctx context.Context, email string, ipHash []byte) error {
	const q = `
INSERT INTO login_attempts (email, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 0, 'epoch', $3)
ON CONFLICT (email, ip_hash)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=$3`
	_, err := l.db.Exec(ctx, q, email, ipHash, l.now())
	return err
}

// Failure counts a failed attempt. A failure older than the window restarts the count.
func (l *PG) Failure(ctx context.Context, email string, ipHash []byte) (Decision, error) {
	now := l.now()

	const q = `
INSERT INTO login_attempts (email, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, 'epoch', $3)
ON CONFLICT (email, ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN login_attempts.updated_at < $4 THEN 1 ELSE login_attempts.fail_count + 1 END,
  updated_at = $3
RETURNING fail_count`
	var fails int
	if err := l.db.QueryRow(ctx, q, email, ipHash, now, now.Add(-l.window)).Scan(&fails); err != nil {
		return Decision{}, err
	}
	if fails < l.maxFails {
		return Decision{Allowed: true}, nil
	}
	const upd = `UPDATE login_attempts SET blocked_until=$3 WHERE email=$1 AND ip_hash=$2`
	if _, err := l.db.Exec(ctx, upd, email, ipHash, now.Add(l.blockFor)); err != nil {
		return Decision{}, err
	}
	return Decision{RetryAfter: l.blockFor}, nil
}
