// Package service contains the application services: credentials, circulation and catalog.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/library-circulation/internal/crypto"
	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/limiter"
	"github.com/and161185/library-circulation/internal/metrics"
	"github.com/and161185/library-circulation/internal/model"
	"github.com/and161185/library-circulation/internal/privilege"
	"github.com/and161185/library-circulation/internal/repository"
	"github.com/and161185/library-circulation/internal/token"
)

// AuthService defines registration and credential operations.
type AuthService interface {
	// Register creates a Registered user with a hashed password.
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	// Authenticate verifies credentials and issues a token pair.
	Authenticate(ctx context.Context, email, password string) (model.Tokens, error)
	// AuthenticateFromIP is Authenticate behind the login limiter.
	AuthenticateFromIP(ctx context.Context, email, password, ip string) (model.Tokens, error)
	// Refresh exchanges a refresh token for a new pair. The presented token dies.
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
	// Revoke drops the user's refresh token. It reports false for unknown users.
	Revoke(ctx context.Context, email string) (bool, error)
}

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
	Name     string
	Phone    string
	Address  string
}

type AuthServiceImpl struct {
	users      repository.UserRepository
	tx         repository.TxRunner
	tokens     *token.Manager
	refreshTTL time.Duration
	lim        limiter.Limiter
	validate   *validator.Validate
	log        *zap.Logger
	met        *metrics.Metrics
	now        func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tx repository.TxRunner,
	tokens *token.Manager,
	refreshTTL time.Duration,
	lim limiter.Limiter,
	log *zap.Logger,
	met *metrics.Metrics,
) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{
		users:      users,
		tx:         tx,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		lim:        lim,
		validate:   validator.New(),
		log:        log,
		met:        met,
		now:        time.Now,
	}
}

// Register creates a new user record.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, errs.Invalid(validationReason(err))
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	digest, err := pkgcrypto.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		ID:           uid,
		Email:        in.Email,
		Name:         in.Name,
		Phone:        in.Phone,
		Address:      in.Address,
		PasswordHash: digest,
		Privilege:    privilege.Registered,
	}
	if err := s.users.Create(ctx, u); err != nil {
		s.met.Auth("register", outcome(err))
		return nil, err
	}
	s.met.Auth("register", "ok")
	s.log.Info("user registered", zap.String("user_id", uid.String()))
	return u, nil
}

// Authenticate checks the password and issues tokens. Unknown email and wrong
// password fail the same way with errs.ErrInvalidCredentials.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, email, password string) (model.Tokens, error) {
	u, err := s.verifyCredentials(ctx, email, password)
	if err != nil {
		s.met.Auth("login", outcome(err))
		return model.Tokens{}, err
	}
	tokens, err := s.issue(ctx, u)
	if err != nil {
		s.met.Auth("login", "error")
		return model.Tokens{}, err
	}
	s.met.Auth("login", "ok")
	return tokens, nil
}

// AuthenticateFromIP authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) AuthenticateFromIP(ctx context.Context, email, password, ip string) (model.Tokens, error) {
	ipHash := limiter.HashIP(ip)

	d, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, err
	}
	if !d.Allowed {
		s.met.Auth("login", "limited")
		return model.Tokens{}, fmt.Errorf("retry after %s: %w", d.RetryAfter.Round(time.Second), errs.ErrRateLimited)
	}

	tokens, err := s.Authenticate(ctx, email, password)
	if errors.Is(err, errs.ErrInvalidCredentials) {
		if d, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && !d.Allowed {
			s.log.Warn("login locked", zap.Duration("retry_after", d.RetryAfter))
			return model.Tokens{}, errs.ErrRateLimited
		} else if ferr != nil {
			s.log.Error("limiter failure record", zap.Error(ferr))
		}
		return model.Tokens{}, err
	}
	if err != nil {
		return model.Tokens{}, err
	}

	// Best-effort: a failed reset only means the counter decays by window.
	if err := s.lim.Success(ctx, email, ipHash); err != nil {
		s.log.Warn("limiter reset", zap.Error(err))
	}
	return tokens, nil
}

// Refresh rotates the refresh token. The old token stops working the moment
// this succeeds, and of two concurrent calls with the same token one fails.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	if refreshToken == "" {
		return model.Tokens{}, errs.ErrInvalidOrExpiredToken
	}
	next, err := pkgcrypto.NewRefreshToken()
	if err != nil {
		return model.Tokens{}, err
	}
	now := s.now()
	refreshExp := now.Add(s.refreshTTL)

	var out model.Tokens
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.RotateRefreshToken(ctx,
			pkgcrypto.HashToken(refreshToken), pkgcrypto.HashToken(next), refreshExp, now)
		if err != nil {
			return err
		}
		access, exp, err := s.tokens.Sign(u.Email, u.Privilege)
		if err != nil {
			return fmt.Errorf("sign access token: %w", err)
		}
		out = model.Tokens{AccessToken: access, RefreshToken: next, ExpiresAt: exp, RefreshExpiresAt: refreshExp}
		return nil
	})
	if err != nil {
		s.met.Auth("refresh", outcome(err))
		return model.Tokens{}, err
	}
	s.met.Auth("refresh", "ok")
	return out, nil
}

// Revoke clears the refresh token. Calling it twice is harmless.
func (s *AuthServiceImpl) Revoke(ctx context.Context, email string) (bool, error) {
	ok, err := s.users.ClearRefreshToken(ctx, email)
	if err != nil {
		return false, err
	}
	s.met.Auth("revoke", "ok")
	return ok, nil
}

func (s *AuthServiceImpl) verifyCredentials(ctx context.Context, email, password string) (*model.User, error) {
	if email == "" || password == "" {
		return nil, errs.ErrInvalidCredentials
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		// Same work as a real check so response time does not reveal the miss.
		pkgcrypto.VerifyPassword(password, dummyDigest())
		return nil, errs.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !pkgcrypto.VerifyPassword(password, u.PasswordHash) {
		return nil, errs.ErrInvalidCredentials
	}
	return u, nil
}

// issue mints both tokens in memory, then persists the refresh digest.
// Nothing is returned unless the digest is stored.
func (s *AuthServiceImpl) issue(ctx context.Context, u *model.User) (model.Tokens, error) {
	access, exp, err := s.tokens.Sign(u.Email, u.Privilege)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := pkgcrypto.NewRefreshToken()
	if err != nil {
		return model.Tokens{}, err
	}
	refreshExp := s.now().Add(s.refreshTTL)
	if err := s.users.SetRefreshToken(ctx, u.ID, pkgcrypto.HashToken(refresh), refreshExp); err != nil {
		return model.Tokens{}, fmt.Errorf("store refresh token: %w", err)
	}
	return model.Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp, RefreshExpiresAt: refreshExp}, nil
}

var (
	dummyOnce sync.Once
	dummy     string
)

func dummyDigest() string {
	dummyOnce.Do(func() {
		dummy, _ = pkgcrypto.HashPassword("not-a-real-password")
	})
	return dummy
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrRateLimited):
		return "limited"
	case errors.Is(err, errs.ErrUnauthenticated),
		errors.Is(err, errs.ErrConflict),
		errors.Is(err, errs.ErrInvalidInput):
		return "denied"
	default:
		return "error"
	}
}

// validationReason turns validator output into a short field list.
func validationReason(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, strings.ToLower(fe.Field())+" "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
