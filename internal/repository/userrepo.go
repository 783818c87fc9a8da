// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/library-circulation/internal/model"
	"github.com/and161185/library-circulation/internal/privilege"
	"github.com/gofrs/uuid/v5"
)

// TxRunner runs fn inside one storage transaction. Repository calls made with
// the ctx passed to fn join that transaction; fn's error rolls it back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository provides access to user identities and their refresh-token state.
type UserRepository interface {
	// Create inserts a new user. Returns errs.ErrDuplicateEmail on unique violation.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by exact email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateProfile stores contact-info fields.
	UpdateProfile(ctx context.Context, u *model.User) error
	// SetPrivilege changes the privilege level.
	SetPrivilege(ctx context.Context, id uuid.UUID, level privilege.Level) error
	// SetRefreshToken stores a refresh-token digest and expiry together.
	SetRefreshToken(ctx context.Context, id uuid.UUID, hash []byte, expiresAt time.Time) error
	// RotateRefreshToken atomically replaces oldHash with newHash if oldHash is
	// current and unexpired at now. Returns errs.ErrInvalidOrExpiredToken otherwise.
	RotateRefreshToken(ctx context.Context, oldHash, newHash []byte, expiresAt, now time.Time) (*model.User, error)
	// ClearRefreshToken removes the stored refresh token. Returns false if the user does not exist.
	ClearRefreshToken(ctx context.Context, email string) (bool, error)
}
