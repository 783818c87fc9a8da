package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/model"
)

const reservationSelect = `
SELECT id, user_id, book_id, is_accepted, reservation_date, expected_start, expected_end
FROM reservations`

// ReservationRepo implements ReservationRepository using PostgreSQL.
type ReservationRepo struct{ db *DB }

// NewReservationRepo constructs a reservation repository.
func NewReservationRepo(db *DB) *ReservationRepo { return &ReservationRepo{db: db} }

// Create inserts a reservation and assigns its ID.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `
INSERT INTO reservations (user_id, book_id, is_accepted, reservation_date, expected_start, expected_end)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	err := r.db.q(ctx).QueryRow(ctx, q,
		res.UserID, res.BookID, res.IsAccepted, res.ReservationDate, res.ExpectedStart, res.ExpectedEnd,
	).Scan(&res.ID)
	if err != nil {
		return mapReservationFK(err)
	}
	return nil
}

// Get selects a reservation by ID.
func (r *ReservationRepo) Get(ctx context.Context, id int64) (*model.Reservation, error) {
	return scanReservation(r.db.q(ctx).QueryRow(ctx, reservationSelect+` WHERE id=$1`, id))
}

// GetForUpdate selects and row-locks a reservation.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, id int64) (*model.Reservation, error) {
	return scanReservation(r.db.q(ctx).QueryRow(ctx, reservationSelect+` WHERE id=$1 FOR UPDATE`, id))
}

// ListByUser returns the user's reservations ordered by expected start.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error) {
	rows, err := r.db.q(ctx).Query(ctx, reservationSelect+` WHERE user_id=$1 ORDER BY expected_start, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.UserID, &res.BookID, &res.IsAccepted,
			&res.ReservationDate, &res.ExpectedStart, &res.ExpectedEnd); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Update stores all mutable reservation fields.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	const q = `
UPDATE reservations
SET user_id=$2, book_id=$3, is_accepted=$4, expected_start=$5, expected_end=$6
WHERE id=$1`
	tag, err := r.db.q(ctx).Exec(ctx, q,
		res.ID, res.UserID, res.BookID, res.IsAccepted, res.ExpectedStart, res.ExpectedEnd)
	if err != nil {
		return mapReservationFK(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrReservationNotFound
	}
	return nil
}

// Delete removes a reservation row.
func (r *ReservationRepo) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM reservations WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(&res.ID, &res.UserID, &res.BookID, &res.IsAccepted,
		&res.ReservationDate, &res.ExpectedStart, &res.ExpectedEnd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

func mapReservationFK(err error) error {
	if !isForeignKeyViolation(err) {
		return err
	}
	if constraintName(err) == "reservations_user_id_fkey" {
		return errs.ErrUserNotFound
	}
	return errs.ErrBookNotFound
}
