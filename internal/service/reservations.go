package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/library-circulation/internal/authz"
	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/metrics"
	"github.com/and161185/library-circulation/internal/model"
	"github.com/and161185/library-circulation/internal/privilege"
	"github.com/and161185/library-circulation/internal/repository"
)

// ReservationService manages reservation requests. Reservations never touch availability.
type ReservationService interface {
	Create(ctx context.Context, actorEmail string, in CreateReservationInput) (*model.Reservation, error)
	Update(ctx context.Context, id int64, patch model.ReservationPatch, actorEmail string) (*model.Reservation, error)
	Accept(ctx context.Context, id int64, actorEmail string) (*model.Reservation, error)
	Deny(ctx context.Context, id int64, actorEmail string) error
	Delete(ctx context.Context, id int64, actorEmail string) (bool, error)
	Get(ctx context.Context, id int64, actorEmail string) (*model.Reservation, error)
	ListForUser(ctx context.Context, actorEmail string, userID uuid.UUID) ([]model.Reservation, error)
}

// CreateReservationInput describes a reservation request. An empty UserEmail
// reserves for the actor.
type CreateReservationInput struct {
	UserEmail     string
	BookID        int64
	ExpectedStart time.Time
	ExpectedEnd   time.Time
}

type ReservationServiceImpl struct {
	tx    repository.TxRunner
	res   repository.ReservationRepository
	users repository.UserRepository
	books repository.BookRepository
	gate  *authz.Gate
	log   *zap.Logger
	met   *metrics.Metrics
	now   func() time.Time
}

// NewReservationService constructs ReservationService.
func NewReservationService(
	tx repository.TxRunner,
	res repository.ReservationRepository,
	users repository.UserRepository,
	books repository.BookRepository,
	gate *authz.Gate,
	log *zap.Logger,
	met *metrics.Metrics,
) *ReservationServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationServiceImpl{tx: tx, res: res, users: users, books: books, gate: gate, log: log, met: met, now: time.Now}
}

// Create records a pending reservation. The book may be on loan.
func (s *ReservationServiceImpl) Create(ctx context.Context, actorEmail string, in CreateReservationInput) (*model.Reservation, error) {
	actor, err := s.gate.Actor(ctx, actorEmail)
	if err != nil {
		return nil, err
	}
	owner := actor
	if in.UserEmail != "" && in.UserEmail != actor.Email {
		if owner, err = s.users.GetByEmail(ctx, in.UserEmail); err != nil {
			return nil, fmt.Errorf("user %s: %w", in.UserEmail, err)
		}
	}
	if !authz.CanChangeFor(actor, owner.ID) {
		return nil, errs.ErrForbidden
	}
	if err := checkWindow(in.ExpectedStart, in.ExpectedEnd); err != nil {
		return nil, err
	}
	if _, err := s.books.Get(ctx, in.BookID); err != nil {
		return nil, fmt.Errorf("book %d: %w", in.BookID, err)
	}
	r := &model.Reservation{
		UserID:          owner.ID,
		BookID:          in.BookID,
		ReservationDate: s.now(),
		ExpectedStart:   in.ExpectedStart,
		ExpectedEnd:     in.ExpectedEnd,
	}
	if err := s.res.Create(ctx, r); err != nil {
		return nil, err
	}
	s.met.Reservation("created")
	s.log.Info("reservation created", zap.Int64("reservation_id", r.ID), zap.Int64("book_id", r.BookID))
	return r, nil
}

// Update applies a partial change. Accepting needs staff; rescheduling needs
// the owner or staff. An accepted reservation cannot go back to pending.
func (s *ReservationServiceImpl) Update(ctx context.Context, id int64, patch model.ReservationPatch, actorEmail string) (*model.Reservation, error) {
	actor, err := s.gate.Actor(ctx, actorEmail)
	if err != nil {
		return nil, err
	}
	var out *model.Reservation
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.res.GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("reservation %d: %w", id, err)
		}
		if !authz.CanChangeFor(actor, cur.UserID) {
			return fmt.Errorf("reservation %d: %w", id, errs.ErrForbidden)
		}
		next := patch.Apply(*cur)
		if next.IsAccepted != cur.IsAccepted {
			if !authz.IsStaff(actor) {
				return fmt.Errorf("accept reservation %d: %w", id, errs.ErrForbidden)
			}
			if cur.IsAccepted {
				return fmt.Errorf("reservation %d: %w", id, errs.ErrInvalidTransition)
			}
		}
		if err := checkWindow(next.ExpectedStart, next.ExpectedEnd); err != nil {
			return err
		}
		if next.BookID != cur.BookID {
			if _, err := s.books.Get(ctx, next.BookID); err != nil {
				return fmt.Errorf("book %d: %w", next.BookID, err)
			}
		}
		if err := s.res.Update(ctx, &next); err != nil {
			return err
		}
		if next.IsAccepted && !cur.IsAccepted {
			s.met.Reservation("accepted")
			s.log.Info("reservation accepted", zap.Int64("reservation_id", id))
		} else {
			s.met.Reservation("updated")
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Accept marks a pending reservation accepted.
func (s *ReservationServiceImpl) Accept(ctx context.Context, id int64, actorEmail string) (*model.Reservation, error) {
	accepted := true
	return s.Update(ctx, id, model.ReservationPatch{IsAccepted: &accepted}, actorEmail)
}

// Deny rejects a reservation by deleting it. Staff only.
func (s *ReservationServiceImpl) Deny(ctx context.Context, id int64, actorEmail string) error {
	if _, err := s.gate.Require(ctx, actorEmail, privilege.Staff...); err != nil {
		return err
	}
	ok, err := s.res.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reservation %d: %w", id, errs.ErrReservationNotFound)
	}
	s.met.Reservation("denied")
	s.log.Info("reservation denied", zap.Int64("reservation_id", id))
	return nil
}

// Delete removes a reservation owned by the actor, or any reservation for staff.
// A missing reservation reports false.
func (s *ReservationServiceImpl) Delete(ctx context.Context, id int64, actorEmail string) (bool, error) {
	actor, err := s.gate.Actor(ctx, actorEmail)
	if err != nil {
		return false, err
	}
	deleted := false
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.res.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !authz.CanChangeFor(actor, cur.UserID) {
			return fmt.Errorf("reservation %d: %w", id, errs.ErrForbidden)
		}
		deleted, err = s.res.Delete(ctx, id)
		return err
	})
	if errors.Is(err, errs.ErrReservationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if deleted {
		s.met.Reservation("deleted")
	}
	return deleted, nil
}

// Get returns a reservation visible to the actor.
func (s *ReservationServiceImpl) Get(ctx context.Context, id int64, actorEmail string) (*model.Reservation, error) {
	actor, err := s.gate.Actor(ctx, actorEmail)
	if err != nil {
		return nil, err
	}
	r, err := s.res.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reservation %d: %w", id, err)
	}
	if !authz.CanActFor(actor, r.UserID) {
		return nil, errs.ErrForbidden
	}
	return r, nil
}

// ListForUser returns a user's reservations.
func (s *ReservationServiceImpl) ListForUser(ctx context.Context, actorEmail string, userID uuid.UUID) ([]model.Reservation, error) {
	if _, err := s.gate.SelfOrPrivileged(ctx, actorEmail, userID, privilege.Staff...); err != nil {
		return nil, err
	}
	return s.res.ListByUser(ctx, userID)
}

func checkWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return errs.Invalid("expected start and end are required")
	}
	if !end.After(start) {
		return errs.Invalid("expected end must be after expected start")
	}
	return nil
}
