package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newLimiter(t *testing.T, maxFails int) (*PG, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	l := NewPG(mock, 15*time.Minute, maxFails, 10*time.Minute)
	l.now = func() time.Time { return fixedNow }
	return l, mock
}

func TestAllow(t *testing.T) {
	l, mock := newLimiter(t, 3)
	defer mock.Close()
	ctx := context.Background()
	ip := HashIP("10.0.0.1")

	mock.ExpectQuery(`SELECT blocked_until FROM login_attempts WHERE email=\$1 AND ip_hash=\$2`).
		WithArgs("a@x.com", ip).
		WillReturnError(pgx.ErrNoRows)
	d, err := l.Allow(ctx, "a@x.com", ip)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	mock.ExpectQuery(`SELECT blocked_until FROM login_attempts`).
		WithArgs("a@x.com", ip).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(fixedNow.Add(5 * time.Minute)))
	d, err = l.Allow(ctx, "a@x.com", ip)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 5*time.Minute, d.RetryAfter)

	mock.ExpectQuery(`SELECT blocked_until FROM login_attempts`).
		WithArgs("a@x.com", ip).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(time.Unix(0, 0).UTC()))
	d, err = l.Allow(ctx, "a@x.com", ip)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	boom := errors.New("db down")
	mock.ExpectQuery(`SELECT blocked_until FROM login_attempts`).
		WithArgs("a@x.com", ip).
		WillReturnError(boom)
	_, err = l.Allow(ctx, "a@x.com", ip)
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSuccess(t *testing.T) {
	l, mock := newLimiter(t, 3)
	defer mock.Close()
	ip := HashIP("10.0.0.1")

	mock.ExpectExec(`INSERT INTO login_attempts .* DO UPDATE SET fail_count=0`).
		WithArgs("a@x.com", ip, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, l.Success(context.Background(), "a@x.com", ip))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_CountsThenBlocks(t *testing.T) {
	l, mock := newLimiter(t, 3)
	defer mock.Close()
	ctx := context.Background()
	ip := HashIP("10.0.0.1")
	windowStart := fixedNow.Add(-15 * time.Minute)

	mock.ExpectQuery(`INSERT INTO login_attempts .* RETURNING fail_count`).
		WithArgs("a@x.com", ip, fixedNow, windowStart).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))
	d, err := l.Failure(ctx, "a@x.com", ip)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	mock.ExpectQuery(`INSERT INTO login_attempts .* RETURNING fail_count`).
		WithArgs("a@x.com", ip, fixedNow, windowStart).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	mock.ExpectExec(`UPDATE login_attempts SET blocked_until=\$3 WHERE email=\$1 AND ip_hash=\$2`).
		WithArgs("a@x.com", ip, fixedNow.Add(10*time.Minute)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	d, err = l.Failure(ctx, "a@x.com", ip)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 10*time.Minute, d.RetryAfter)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_DBError(t *testing.T) {
	l, mock := newLimiter(t, 3)
	defer mock.Close()
	boom := errors.New("db down")

	mock.ExpectQuery(`RETURNING fail_count`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(boom)
	_, err := l.Failure(context.Background(), "a@x.com", HashIP("x"))
	require.ErrorIs(t, err, boom)
}

func TestHashIP_Determinism(t *testing.T) {
	t.Parallel()

	require.Equal(t, HashIP("1.2.3.4"), HashIP("1.2.3.4"))
	require.NotEqual(t, HashIP("1.2.3.4"), HashIP("1.2.3.5"))
	require.Len(t, HashIP(""), 32)
}

func TestNop(t *testing.T) {
	t.Parallel()

	var l Limiter = Nop{}
	d, err := l.Failure(context.Background(), "a", nil)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	d, err = l.Allow(context.Background(), "a", nil)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}
