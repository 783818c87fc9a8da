package postgres

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/model"
)

const loanSelect = `
SELECT id, user_id, book_id, extensions, start_date, expected_end_date, return_date
FROM loans WHERE id=$1`

// LoanRepo implements LoanRepository using PostgreSQL.
type LoanRepo struct{ db *DB }

// NewLoanRepo constructs a loan repository.
func NewLoanRepo(db *DB) *LoanRepo { return &LoanRepo{db: db} }

// Create inserts a loan and assigns its ID.
func (r *LoanRepo) Create(ctx context.Context, l *model.Loan) error {
	const q = `
INSERT INTO loans (user_id, book_id, extensions, start_date, expected_end_date, return_date)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	err := r.db.q(ctx).QueryRow(ctx, q,
		l.UserID, l.BookID, l.Extensions, l.StartDate, l.ExpectedEndDate, l.ReturnDate,
	).Scan(&l.ID)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		// loans_active_book_uq: the book already has an open loan.
		return errs.ErrBookUnavailable
	case isForeignKeyViolation(err) && constraintName(err) == "loans_user_id_fkey":
		return errs.ErrUserNotFound
	case isForeignKeyViolation(err):
		return errs.ErrBookNotFound
	}
	return err
}

// Get selects a loan by ID.
func (r *LoanRepo) Get(ctx context.Context, id int64) (*model.Loan, error) {
	return scanLoan(r.db.q(ctx).QueryRow(ctx, loanSelect, id))
}

// GetForUpdate selects a loan and locks its row until the surrounding transaction ends.
func (r *LoanRepo) GetForUpdate(ctx context.Context, id int64) (*model.Loan, error) {
	return scanLoan(r.db.q(ctx).QueryRow(ctx, loanSelect+` FOR UPDATE`, id))
}

// List returns loans matching f, newest first.
func (r *LoanRepo) List(ctx context.Context, f model.LoanFilter) ([]model.Loan, error) {
	q, args, err := buildLoanListQuery(f)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.q(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Loan
	for rows.Next() {
		var l model.Loan
		if err := rows.Scan(&l.ID, &l.UserID, &l.BookID, &l.Extensions,
			&l.StartDate, &l.ExpectedEndDate, &l.ReturnDate); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func buildLoanListQuery(f model.LoanFilter) (string, []any, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From("loans").
		Select("id", "user_id", "book_id", "extensions", "start_date", "expected_end_date", "return_date").
		Order(goqu.I("start_date").Desc(), goqu.I("id").Desc()).
		Limit(pageSize(f.Limit)).
		Offset(f.Offset).
		Prepared(true)
	if f.UserID != nil {
		stmt = stmt.Where(goqu.C("user_id").Eq(*f.UserID))
	}
	if f.BookID != nil {
		stmt = stmt.Where(goqu.C("book_id").Eq(*f.BookID))
	}
	if f.ActiveOnly {
		stmt = stmt.Where(goqu.C("return_date").IsNull())
	}
	return stmt.ToSQL()
}

// Update stores all mutable loan fields.
func (r *LoanRepo) Update(ctx context.Context, l *model.Loan) error {
	const q = `
UPDATE loans
SET user_id=$2, book_id=$3, extensions=$4, start_date=$5, expected_end_date=$6, return_date=$7
WHERE id=$1`
	tag, err := r.db.q(ctx).Exec(ctx, q,
		l.ID, l.UserID, l.BookID, l.Extensions, l.StartDate, l.ExpectedEndDate, l.ReturnDate)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.ErrBookUnavailable
		}
		if isForeignKeyViolation(err) {
			return errs.ErrBookNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrLoanNotFound
	}
	return nil
}

// Delete removes a loan row.
func (r *LoanRepo) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM loans WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanLoan(row pgx.Row) (*model.Loan, error) {
	var l model.Loan
	err := row.Scan(&l.ID, &l.UserID, &l.BookID, &l.Extensions, &l.StartDate, &l.ExpectedEndDate, &l.ReturnDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrLoanNotFound
		}
		return nil, err
	}
	return &l, nil
}
