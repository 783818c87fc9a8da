package httpserver

import (
	"context"

	"github.com/and161185/library-circulation/internal/token"
)

type ctxKey string

const (
	requestIDKey ctxKey = "circ.requestID"
	claimsKey    ctxKey = "circ.claims"
)

// WithClaims stores verified access token claims in context.
func WithClaims(ctx context.Context, c token.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromCtx fetches the caller's claims from context.
func ClaimsFromCtx(ctx context.Context) (token.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(token.Claims)
	return c, ok
}

// actorEmail is the acting identity passed to services. Empty when anonymous.
func actorEmail(ctx context.Context) string {
	c, _ := ClaimsFromCtx(ctx)
	return c.Subject
}

func requestIDFromCtx(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}
