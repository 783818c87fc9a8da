package repository

import (
	"context"

	"github.com/and161185/library-circulation/internal/model"
	"github.com/gofrs/uuid/v5"
)

// BookRepository provides catalog access to books plus the single availability primitive.
type BookRepository interface {
	Create(ctx context.Context, b *model.Book) error
	Get(ctx context.Context, id int64) (*model.Book, error)
	List(ctx context.Context, f model.BookFilter) ([]model.Book, error)
	// UpdateDetails stores catalog fields; it never writes availability.
	UpdateDetails(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id int64) (bool, error)
	// SetAvailability flips the flag only if it differs from available and
	// reports whether a row changed. It is the compare-and-swap used by the ledger.
	SetAvailability(ctx context.Context, id int64, available bool) (bool, error)
}

// LoanRepository persists loans.
type LoanRepository interface {
	Create(ctx context.Context, l *model.Loan) error
	Get(ctx context.Context, id int64) (*model.Loan, error)
	// GetForUpdate loads and row-locks a loan for the current transaction.
	GetForUpdate(ctx context.Context, id int64) (*model.Loan, error)
	List(ctx context.Context, f model.LoanFilter) ([]model.Loan, error)
	Update(ctx context.Context, l *model.Loan) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// ReservationRepository persists reservations.
type ReservationRepository interface {
	Create(ctx context.Context, r *model.Reservation) error
	Get(ctx context.Context, id int64) (*model.Reservation, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error)
	Update(ctx context.Context, r *model.Reservation) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// CatalogRepository provides author and category records.
type CatalogRepository interface {
	CreateAuthor(ctx context.Context, a *model.Author) error
	ListAuthors(ctx context.Context) ([]model.Author, error)
	CreateCategory(ctx context.Context, c *model.Category) error
	ListCategories(ctx context.Context) ([]model.Category, error)
}
