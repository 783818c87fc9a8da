// Package ledger owns the availability flag of books. Loans change availability
// only through it, inside their own transaction.
package ledger

import (
	"context"
	"fmt"

	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/model"
)

// Store is the slice of the book repository the ledger needs.
type Store interface {
	Get(ctx context.Context, id int64) (*model.Book, error)
	SetAvailability(ctx context.Context, id int64, available bool) (bool, error)
}

// Ledger flips book availability.
type Ledger struct{ books Store }

// New constructs a Ledger over s.
func New(s Store) *Ledger { return &Ledger{books: s} }

// Claim marks the book unavailable, failing with errs.ErrBookUnavailable if it
// already was. Check and flip happen in one conditional write, so of two
// concurrent claims at most one succeeds.
func (l *Ledger) Claim(ctx context.Context, bookID int64) error {
	changed, err := l.books.SetAvailability(ctx, bookID, false)
	if err != nil {
		return fmt.Errorf("claim book %d: %w", bookID, err)
	}
	if changed {
		return nil
	}
	if err := l.exists(ctx, bookID); err != nil {
		return err
	}
	return fmt.Errorf("book %d: %w", bookID, errs.ErrBookUnavailable)
}

// MarkAvailable sets the book available. Already-available books are left as is.
func (l *Ledger) MarkAvailable(ctx context.Context, bookID int64) error {
	return l.mark(ctx, bookID, true)
}

// MarkUnavailable sets the book unavailable. Already-unavailable books are left as is.
func (l *Ledger) MarkUnavailable(ctx context.Context, bookID int64) error {
	return l.mark(ctx, bookID, false)
}

func (l *Ledger) mark(ctx context.Context, bookID int64, available bool) error {
	changed, err := l.books.SetAvailability(ctx, bookID, available)
	if err != nil {
		return fmt.Errorf("set availability of book %d: %w", bookID, err)
	}
	if changed {
		return nil
	}
	return l.exists(ctx, bookID)
}

// exists distinguishes "no row" from "already in the requested state" after a no-op write.
func (l *Ledger) exists(ctx context.Context, bookID int64) error {
	if _, err := l.books.Get(ctx, bookID); err != nil {
		return fmt.Errorf("book %d: %w", bookID, err)
	}
	return nil
}
