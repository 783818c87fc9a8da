// Package authz resolves the acting user and checks privilege membership.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/model"
	"github.com/and161185/library-circulation/internal/privilege"
)

// UserLookup loads users by email.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// Gate answers "may this caller do that".
type Gate struct{ users UserLookup }

// NewGate constructs a Gate.
func NewGate(users UserLookup) *Gate { return &Gate{users: users} }

// Actor loads the acting user. An unknown or empty email is unauthenticated.
func (g *Gate) Actor(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, errs.ErrUnauthenticated
	}
	u, err := g.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("actor %s: %w", email, errs.ErrUnauthenticated)
		}
		return nil, err
	}
	return u, nil
}

// Require returns the actor if its privilege is a member of allowed.
func (g *Gate) Require(ctx context.Context, email string, allowed ...privilege.Level) (*model.User, error) {
	u, err := g.Actor(ctx, email)
	if err != nil {
		return nil, err
	}
	if !privilege.Satisfies(u.Privilege, allowed...) {
		return nil, fmt.Errorf("%s is %s: %w", email, u.Privilege, errs.ErrForbidden)
	}
	return u, nil
}

// SelfOrPrivileged admits the owner of a resource or any actor whose privilege is in allowed.
func (g *Gate) SelfOrPrivileged(ctx context.Context, email string, owner uuid.UUID, allowed ...privilege.Level) (*model.User, error) {
	u, err := g.Actor(ctx, email)
	if err != nil {
		return nil, err
	}
	if u.ID == owner || privilege.Satisfies(u.Privilege, allowed...) {
		return u, nil
	}
	return nil, fmt.Errorf("%s does not own the resource: %w", email, errs.ErrForbidden)
}

// IsStaff reports whether u may act on behalf of other users.
func IsStaff(u *model.User) bool {
	return u != nil && privilege.Satisfies(u.Privilege, privilege.Staff...)
}

// CanActFor reports whether actor may see a resource owned by owner.
func CanActFor(actor *model.User, owner uuid.UUID) bool {
	return actor != nil && (actor.ID == owner || IsStaff(actor))
}

// CanChangeFor reports whether actor may mutate a resource owned by owner.
// Owners below Registered keep read access only.
func CanChangeFor(actor *model.User, owner uuid.UUID) bool {
	if IsStaff(actor) {
		return true
	}
	return CanActFor(actor, owner) && privilege.AtLeast(actor.Privilege, privilege.Registered)
}
