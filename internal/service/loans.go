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
	"github.com/and161185/library-circulation/internal/ledger"
	"github.com/and161185/library-circulation/internal/metrics"
	"github.com/and161185/library-circulation/internal/model"
	"github.com/and161185/library-circulation/internal/privilege"
	"github.com/and161185/library-circulation/internal/repository"
)

// LoanService manages the loan lifecycle. Every availability change goes through the ledger
// inside the same transaction as the loan write.
type LoanService interface {
	Create(ctx context.Context, actorEmail string, in CreateLoanInput) (*model.Loan, error)
	Update(ctx context.Context, loanID int64, patch model.LoanPatch, actorEmail string) (*model.Loan, error)
	Extend(ctx context.Context, loanID int64, actorEmail string) (*model.Loan, error)
	Return(ctx context.Context, loanID int64, actorEmail string, at time.Time) (*model.Loan, error)
	Delete(ctx context.Context, loanID int64, actorEmail string) (bool, error)
	Get(ctx context.Context, loanID int64, actorEmail string) (*model.Loan, error)
	ListForUser(ctx context.Context, actorEmail string, userID uuid.UUID) ([]model.Loan, error)
	List(ctx context.Context, actorEmail string, f model.LoanFilter) ([]model.Loan, error)
}

// CreateLoanInput describes a checkout. A zero StartTime means now.
type CreateLoanInput struct {
	UserEmail string
	BookID    int64
	StartTime time.Time
}

type LoanServiceImpl struct {
	tx     repository.TxRunner
	loans  repository.LoanRepository
	users  repository.UserRepository
	ledger *ledger.Ledger
	gate   *authz.Gate
	log    *zap.Logger
	met    *metrics.Metrics
	now    func() time.Time
}

// NewLoanService constructs LoanService.
func NewLoanService(
	tx repository.TxRunner,
	loans repository.LoanRepository,
	users repository.UserRepository,
	l *ledger.Ledger,
	gate *authz.Gate,
	log *zap.Logger,
	met *metrics.Metrics,
) *LoanServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoanServiceImpl{tx: tx, loans: loans, users: users, ledger: l, gate: gate, log: log, met: met, now: time.Now}
}

// Create checks a book out to a user. Only staff create loans.
func (s *LoanServiceImpl) Create(ctx context.Context, actorEmail string, in CreateLoanInput) (*model.Loan, error) {
	if _, err := s.gate.Require(ctx, actorEmail, privilege.Staff...); err != nil {
		return nil, err
	}
	if in.UserEmail == "" {
		return nil, errs.Invalid("user email is required")
	}
	if in.BookID <= 0 {
		return nil, errs.Invalid("book id is required")
	}
	borrower, err := s.users.GetByEmail(ctx, in.UserEmail)
	if err != nil {
		return nil, fmt.Errorf("borrower %s: %w", in.UserEmail, err)
	}
	start := in.StartTime
	if start.IsZero() {
		start = s.now()
	}
	loan := &model.Loan{
		UserID:          borrower.ID,
		BookID:          in.BookID,
		Extensions:      model.DefaultExtensions,
		StartDate:       start,
		ExpectedEndDate: start.Add(model.LoanPeriod),
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ledger.Claim(ctx, in.BookID); err != nil {
			return err
		}
		return s.loans.Create(ctx, loan)
	})
	if err != nil {
		return nil, err
	}
	s.met.Loan("created")
	s.log.Info("loan created",
		zap.Int64("loan_id", loan.ID), zap.Int64("book_id", loan.BookID), zap.String("user_id", loan.UserID.String()))
	return loan, nil
}

// Update applies a partial change. Moving an active loan to another book claims
// the new book before releasing the old one; setting a return date on an
// active loan releases its book. On a returned loan only history is rewritten.
func (s *LoanServiceImpl) Update(ctx context.Context, loanID int64, patch model.LoanPatch, actorEmail string) (*model.Loan, error) {
	if patch.Extensions != nil && *patch.Extensions < 0 {
		return nil, errs.Invalid("extensions must not be negative")
	}
	return s.withLoan(ctx, loanID, actorEmail, func(ctx context.Context, cur *model.Loan) (*model.Loan, error) {
		return s.apply(ctx, cur, patch)
	})
}

// Extend uses one remaining extension and pushes the due date by one loan period.
func (s *LoanServiceImpl) Extend(ctx context.Context, loanID int64, actorEmail string) (*model.Loan, error) {
	return s.withLoan(ctx, loanID, actorEmail, func(ctx context.Context, cur *model.Loan) (*model.Loan, error) {
		if !cur.Active() {
			return nil, fmt.Errorf("loan %d: %w", loanID, errs.ErrLoanClosed)
		}
		if cur.Extensions <= 0 {
			return nil, fmt.Errorf("loan %d: %w", loanID, errs.ErrNoExtensionsLeft)
		}
		next := *cur
		next.Extensions--
		next.ExpectedEndDate = cur.ExpectedEndDate.Add(model.LoanPeriod)
		if err := s.loans.Update(ctx, &next); err != nil {
			return nil, err
		}
		s.met.Loan("extended")
		return &next, nil
	})
}

// Return closes an active loan at the given time (now when zero).
func (s *LoanServiceImpl) Return(ctx context.Context, loanID int64, actorEmail string, at time.Time) (*model.Loan, error) {
	if at.IsZero() {
		at = s.now()
	}
	return s.withLoan(ctx, loanID, actorEmail, func(ctx context.Context, cur *model.Loan) (*model.Loan, error) {
		if !cur.Active() {
			return nil, fmt.Errorf("loan %d: %w", loanID, errs.ErrLoanClosed)
		}
		return s.apply(ctx, cur, model.LoanPatch{ReturnDate: &at})
	})
}

// Delete removes a loan. An active loan gives its book back first.
func (s *LoanServiceImpl) Delete(ctx context.Context, loanID int64, actorEmail string) (bool, error) {
	_, err := s.withLoan(ctx, loanID, actorEmail, func(ctx context.Context, cur *model.Loan) (*model.Loan, error) {
		if cur.Active() {
			if err := s.ledger.MarkAvailable(ctx, cur.BookID); err != nil {
				return nil, err
			}
		}
		if _, err := s.loans.Delete(ctx, cur.ID); err != nil {
			return nil, err
		}
		return cur, nil
	})
	if errors.Is(err, errs.ErrLoanNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.met.Loan("deleted")
	s.log.Info("loan deleted", zap.Int64("loan_id", loanID))
	return true, nil
}

// Get returns a loan visible to the actor.
func (s *LoanServiceImpl) Get(ctx context.Context, loanID int64, actorEmail string) (*model.Loan, error) {
	actor, err := s.gate.Actor(ctx, actorEmail)
	if err != nil {
		return nil, err
	}
	l, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("loan %d: %w", loanID, err)
	}
	if !authz.CanActFor(actor, l.UserID) {
		return nil, errs.ErrForbidden
	}
	return l, nil
}

// ListForUser returns the user's loans, newest first.
func (s *LoanServiceImpl) ListForUser(ctx context.Context, actorEmail string, userID uuid.UUID) ([]model.Loan, error) {
	if _, err := s.gate.SelfOrPrivileged(ctx, actorEmail, userID, privilege.Staff...); err != nil {
		return nil, err
	}
	return s.loans.List(ctx, model.LoanFilter{UserID: &userID})
}

// List returns loans across users. Staff only.
func (s *LoanServiceImpl) List(ctx context.Context, actorEmail string, f model.LoanFilter) ([]model.Loan, error) {
	if _, err := s.gate.Require(ctx, actorEmail, privilege.Staff...); err != nil {
		return nil, err
	}
	return s.loans.List(ctx, f)
}

// withLoan authenticates the actor, then loads and locks the loan in a
// transaction and runs fn if the actor owns the loan or is staff.
func (s *LoanServiceImpl) withLoan(
	ctx context.Context, loanID int64, actorEmail string,
	fn func(ctx context.Context, cur *model.Loan) (*model.Loan, error),
) (*model.Loan, error) {
	actor, err := s.gate.Actor(ctx, actorEmail)
	if err != nil {
		return nil, err
	}
	var out *model.Loan
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		cur, err := s.loans.GetForUpdate(ctx, loanID)
		if err != nil {
			return fmt.Errorf("loan %d: %w", loanID, err)
		}
		if !authz.CanChangeFor(actor, cur.UserID) {
			return fmt.Errorf("loan %d: %w", loanID, errs.ErrForbidden)
		}
		out, err = fn(ctx, cur)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LoanServiceImpl) apply(ctx context.Context, cur *model.Loan, patch model.LoanPatch) (*model.Loan, error) {
	next := patch.Apply(*cur)
	if next.ExpectedEndDate.Before(next.StartDate) {
		return nil, errs.Invalid("expected end date precedes start date")
	}
	if next.ReturnDate != nil && next.ReturnDate.Before(next.StartDate) {
		return nil, errs.Invalid("return date precedes start date")
	}
	moved := next.BookID != cur.BookID
	returned := cur.Active() && !next.Active()

	if cur.Active() {
		if moved && next.Active() {
			if err := s.ledger.Claim(ctx, next.BookID); err != nil {
				return nil, err
			}
		}
		if moved || returned {
			if err := s.ledger.MarkAvailable(ctx, cur.BookID); err != nil {
				return nil, err
			}
		}
	}
	if err := s.loans.Update(ctx, &next); err != nil {
		return nil, err
	}

	if moved && cur.Active() {
		s.met.Loan("reassigned")
		s.log.Info("loan reassigned",
			zap.Int64("loan_id", cur.ID), zap.Int64("from_book", cur.BookID), zap.Int64("to_book", next.BookID))
	}
	if returned {
		s.met.Loan("returned")
		s.log.Info("loan returned", zap.Int64("loan_id", cur.ID), zap.Int64("book_id", cur.BookID))
	}
	return &next, nil
}
