package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/model"
)

var reservationCols = []string{"id", "user_id", "book_id", "is_accepted", "reservation_date", "expected_start", "expected_end"}

func TestReservationRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewReservationRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	res := &model.Reservation{UserID: uuid.Must(uuid.NewV4()), BookID: 3,
		ReservationDate: now, ExpectedStart: now.Add(time.Hour), ExpectedEnd: now.Add(48 * time.Hour)}

	mock.ExpectQuery(`INSERT INTO reservations \(user_id, book_id, is_accepted, reservation_date, expected_start, expected_end\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\) RETURNING id`).
		WithArgs(res.UserID, int64(3), false, now, res.ExpectedStart, res.ExpectedEnd).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(8)))
	require.NoError(t, r.Create(ctx, res))
	require.Equal(t, int64(8), res.ID)

	mock.ExpectQuery(`INSERT INTO reservations`).
		WithArgs(res.UserID, int64(3), false, now, res.ExpectedStart, res.ExpectedEnd).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "reservations_book_id_fkey"})
	require.ErrorIs(t, r.Create(ctx, res), errs.ErrBookNotFound)
}

func TestReservationRepo_GetAndList(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewReservationRepo(db)
	ctx := context.Background()
	uid := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM reservations WHERE id=\$1 FOR UPDATE`).
		WithArgs(int64(8)).
		WillReturnRows(pgxmock.NewRows(reservationCols).AddRow(int64(8), uid, int64(3), true, now, now, now.Add(time.Hour)))
	res, err := r.GetForUpdate(ctx, 8)
	require.NoError(t, err)
	require.True(t, res.IsAccepted)

	mock.ExpectQuery(`FROM reservations WHERE id=\$1`).WithArgs(int64(9)).WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, 9)
	require.ErrorIs(t, err, errs.ErrReservationNotFound)

	mock.ExpectQuery(`FROM reservations WHERE user_id=\$1 ORDER BY expected_start, id`).
		WithArgs(uid).
		WillReturnRows(pgxmock.NewRows(reservationCols).
			AddRow(int64(8), uid, int64(3), false, now, now, now.Add(time.Hour)).
			AddRow(int64(9), uid, int64(4), false, now, now.Add(time.Hour), now.Add(2*time.Hour)))
	list, err := r.ListByUser(ctx, uid)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestReservationRepo_UpdateAndDelete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewReservationRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	res := &model.Reservation{ID: 8, UserID: uuid.Must(uuid.NewV4()), BookID: 3, IsAccepted: true,
		ExpectedStart: now, ExpectedEnd: now.Add(time.Hour)}

	mock.ExpectExec(`UPDATE reservations SET user_id=\$2, book_id=\$3, is_accepted=\$4, expected_start=\$5, expected_end=\$6 WHERE id=\$1`).
		WithArgs(int64(8), res.UserID, int64(3), true, now, res.ExpectedEnd).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.Update(ctx, res), errs.ErrReservationNotFound)

	mock.ExpectExec(`DELETE FROM reservations WHERE id=\$1`).WithArgs(int64(8)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	ok, err := r.Delete(ctx, 8)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCatalogRepo(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCatalogRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO authors \(name\) VALUES \(\$1\) RETURNING id`).
		WithArgs("Herbert").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	a := &model.Author{Name: "Herbert"}
	require.NoError(t, r.CreateAuthor(ctx, a))
	require.Equal(t, int64(1), a.ID)

	mock.ExpectQuery(`INSERT INTO categories \(name\) VALUES \(\$1\) RETURNING id`).
		WithArgs("SF").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.CreateCategory(ctx, &model.Category{Name: "SF"}), errs.ErrCategoryExists)

	mock.ExpectQuery(`SELECT id, name FROM authors ORDER BY name, id`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Herbert").AddRow(int64(2), "Le Guin"))
	authors, err := r.ListAuthors(ctx)
	require.NoError(t, err)
	require.Len(t, authors, 2)

	mock.ExpectQuery(`SELECT id, name FROM categories ORDER BY name`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))
	cats, err := r.ListCategories(ctx)
	require.NoError(t, err)
	require.Empty(t, cats)
}
