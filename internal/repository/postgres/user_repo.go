package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/model"
	"github.com/and161185/library-circulation/internal/privilege"
)

const userColumns = `id, email, name, phone, address, pwd_hash, privilege, refresh_token_hash, refresh_token_expires_at, created_at`

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, email, name, phone, address, pwd_hash, privilege)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`
	err := r.db.q(ctx).QueryRow(ctx, q,
		u.ID, u.Email, u.Name, u.Phone, u.Address, u.PasswordHash, u.Privilege.String(),
	).Scan(&u.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrDuplicateEmail
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.db.q(ctx).QueryRow(ctx, q, id))
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.db.q(ctx).QueryRow(ctx, q, email))
}

// UpdateProfile stores name, phone and address.
func (r *UserRepo) UpdateProfile(ctx context.Context, u *model.User) error {
	const q = `UPDATE users SET name=$2, phone=$3, address=$4 WHERE id=$1`
	tag, err := r.db.q(ctx).Exec(ctx, q, u.ID, u.Name, u.Phone, u.Address)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

// SetPrivilege changes the user's privilege level.
func (r *UserRepo) SetPrivilege(ctx context.Context, id uuid.UUID, level privilege.Level) error {
	const q = `UPDATE users SET privilege=$2 WHERE id=$1`
	tag, err := r.db.q(ctx).Exec(ctx, q, id, level.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

// SetRefreshToken stores the refresh token digest and its expiry in one statement.
func (r *UserRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, hash []byte, expiresAt time.Time) error {
	const q = `UPDATE users SET refresh_token_hash=$2, refresh_token_expires_at=$3 WHERE id=$1`
	tag, err := r.db.q(ctx).Exec(ctx, q, id, hash, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

// RotateRefreshToken swaps oldHash for newHash only while oldHash is stored and unexpired.
// Two concurrent rotations of the same token cannot both match the predicate.
func (r *UserRepo) RotateRefreshToken(ctx context.Context, oldHash, newHash []byte, expiresAt, now time.Time) (*model.User, error) {
	const q = `
UPDATE users
SET refresh_token_hash = $2, refresh_token_expires_at = $3
WHERE refresh_token_hash = $1 AND refresh_token_expires_at > $4
RETURNING ` + userColumns
	u, err := scanUser(r.db.q(ctx).QueryRow(ctx, q, oldHash, newHash, expiresAt, now))
	if errors.Is(err, errs.ErrUserNotFound) {
		return nil, errs.ErrInvalidOrExpiredToken
	}
	return u, err
}

// ClearRefreshToken drops the stored refresh token. It reports false when no such user exists.
func (r *UserRepo) ClearRefreshToken(ctx context.Context, email string) (bool, error) {
	const q = `UPDATE users SET refresh_token_hash=NULL, refresh_token_expires_at=NULL WHERE email=$1`
	tag, err := r.db.q(ctx).Exec(ctx, q, email)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u   model.User
		lvl string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Address, &u.PasswordHash, &lvl,
		&u.RefreshTokenHash, &u.RefreshTokenExpiresAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	if u.Privilege, err = privilege.Parse(lvl); err != nil {
		return nil, err
	}
	return &u, nil
}
