package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/library-circulation/internal/authz"
	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/model"
	"github.com/and161185/library-circulation/internal/privilege"
	"github.com/and161185/library-circulation/internal/repository"
)

// UserService exposes account reads and profile or privilege changes.
type UserService interface {
	Me(ctx context.Context, actorEmail string) (*model.User, error)
	GetUser(ctx context.Context, actorEmail string, id uuid.UUID) (*model.User, error)
	UpdateProfile(ctx context.Context, actorEmail string, id uuid.UUID, patch model.ProfilePatch) (*model.User, error)
	SetPrivilege(ctx context.Context, actorEmail string, id uuid.UUID, level privilege.Level) (*model.User, error)
}

type UserServiceImpl struct {
	users repository.UserRepository
	gate  *authz.Gate
	log   *zap.Logger
}

// NewUserService constructs UserService.
func NewUserService(users repository.UserRepository, gate *authz.Gate, log *zap.Logger) *UserServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserServiceImpl{users: users, gate: gate, log: log}
}

// Me returns the caller's own account.
func (s *UserServiceImpl) Me(ctx context.Context, actorEmail string) (*model.User, error) {
	return s.gate.Actor(ctx, actorEmail)
}

// GetUser returns a user to themselves or to staff.
func (s *UserServiceImpl) GetUser(ctx context.Context, actorEmail string, id uuid.UUID) (*model.User, error) {
	if _, err := s.gate.SelfOrPrivileged(ctx, actorEmail, id, privilege.Staff...); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}

// UpdateProfile changes contact info of the actor, or of anyone for staff.
func (s *UserServiceImpl) UpdateProfile(ctx context.Context, actorEmail string, id uuid.UUID, patch model.ProfilePatch) (*model.User, error) {
	if _, err := s.gate.SelfOrPrivileged(ctx, actorEmail, id, privilege.Staff...); err != nil {
		return nil, err
	}
	cur, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	next := patch.Apply(*cur)
	if err := s.users.UpdateProfile(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// SetPrivilege changes a user's level. Admin only, and never on the caller's own account.
func (s *UserServiceImpl) SetPrivilege(ctx context.Context, actorEmail string, id uuid.UUID, level privilege.Level) (*model.User, error) {
	actor, err := s.gate.Require(ctx, actorEmail, privilege.Admin)
	if err != nil {
		return nil, err
	}
	if !level.Valid() {
		return nil, errs.Invalid(fmt.Sprintf("unknown privilege %q", level))
	}
	if actor.ID == id {
		return nil, fmt.Errorf("change own privilege: %w", errs.ErrForbidden)
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	if err := s.users.SetPrivilege(ctx, id, level); err != nil {
		return nil, err
	}
	s.log.Info("privilege changed",
		zap.String("user_id", id.String()), zap.String("from", u.Privilege.String()), zap.String("to", level.String()))
	u.Privilege = level
	return u, nil
}
