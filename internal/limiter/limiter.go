// Package limiter throttles failed logins per (email, client address).
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // zero when Allowed
}

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether a login attempt may proceed.
	Allow(ctx context.Context, email string, ipHash []byte) (Decision, error)
	// Success clears the failure history after a successful login.
	Success(ctx context.Context, email string, ipHash []byte) error
	// Failure records a failed attempt and reports whether the key is now locked.
	Failure(ctx context.Context, email string, ipHash []byte) (Decision, error)
}

// HashIP returns a stable digest of the client address so raw addresses are never stored.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

// Nop never blocks. It is used when limiting is disabled in config.
type Nop struct{}

func (Nop) Allow(context.Context, string, []byte) (Decision, error) {
	return Decision{Allowed: true}, nil
}
func (Nop) Success(context.Context, string, []byte) error { return nil }
func (Nop) Failure(context.Context, string, []byte) (Decision, error) {
	return Decision{Allowed: true}, nil
}
