package service

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/library-circulation/internal/authz"
	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/ledger"
	"github.com/and161185/library-circulation/internal/model"
	"github.com/and161185/library-circulation/internal/privilege"
	"github.com/and161185/library-circulation/internal/repository"
	"github.com/and161185/library-circulation/internal/token"
)

// memStore is an in-memory store with all-or-nothing transactions: a failing
// RunInTx restores the snapshot taken when it started.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users   map[uuid.UUID]model.User
	books   map[int64]model.Book
	loans   map[int64]model.Loan
	res     map[int64]model.Reservation
	authors []model.Author
	cats    []model.Category
	nextID  int64

	setRefreshErr error
}

type inTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		users: map[uuid.UUID]model.User{},
		books: map[int64]model.Book{},
		loans: map[int64]model.Loan{},
		res:   map[int64]model.Reservation{},
	}
}

func (s *memStore) id() int64 { s.nextID++; return s.nextID }

func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	users map[uuid.UUID]model.User
	books map[int64]model.Book
	loans map[int64]model.Loan
	res   map[int64]model.Reservation
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		users: make(map[uuid.UUID]model.User, len(s.users)),
		books: make(map[int64]model.Book, len(s.books)),
		loans: make(map[int64]model.Loan, len(s.loans)),
		res:   make(map[int64]model.Reservation, len(s.res)),
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.books {
		snap.books[k] = v
	}
	for k, v := range s.loans {
		snap.loans[k] = v
	}
	for k, v := range s.res {
		snap.res[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.users, s.books, s.loans, s.res = snap.users, snap.books, snap.loans, snap.res
}

/************ users ************/

type memUsers struct{ *memStore }

var _ repository.UserRepository = memUsers{}

func (m memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Email == u.Email {
			return errs.ErrDuplicateEmail
		}
	}
	u.CreatedAt = time.Now()
	m.users[u.ID] = *u
	return nil
}

func (m memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	return &u, nil
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, errs.ErrUserNotFound
}

func (m memUsers) UpdateProfile(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		return errs.ErrUserNotFound
	}
	cur.Name, cur.Phone, cur.Address = u.Name, u.Phone, u.Address
	m.users[u.ID] = cur
	return nil
}

func (m memUsers) SetPrivilege(_ context.Context, id uuid.UUID, level privilege.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[id]
	if !ok {
		return errs.ErrUserNotFound
	}
	cur.Privilege = level
	m.users[id] = cur
	return nil
}

func (m memUsers) SetRefreshToken(_ context.Context, id uuid.UUID, hash []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setRefreshErr != nil {
		return m.setRefreshErr
	}
	cur, ok := m.users[id]
	if !ok {
		return errs.ErrUserNotFound
	}
	cur.RefreshTokenHash, cur.RefreshTokenExpiresAt = hash, &expiresAt
	m.users[id] = cur
	return nil
}

func (m memUsers) RotateRefreshToken(_ context.Context, oldHash, newHash []byte, expiresAt, now time.Time) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.RefreshTokenHash != nil && bytes.Equal(u.RefreshTokenHash, oldHash) &&
			u.RefreshTokenExpiresAt != nil && u.RefreshTokenExpiresAt.After(now) {
			u.RefreshTokenHash, u.RefreshTokenExpiresAt = newHash, &expiresAt
			m.users[id] = u
			return &u, nil
		}
	}
	return nil, errs.ErrInvalidOrExpiredToken
}

func (m memUsers) ClearRefreshToken(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Email == email {
			u.RefreshTokenHash, u.RefreshTokenExpiresAt = nil, nil
			m.users[id] = u
			return true, nil
		}
	}
	return false, nil
}

/************ books ************/

type memBooks struct{ *memStore }

var _ repository.BookRepository = memBooks{}

func (m memBooks) Create(_ context.Context, b *model.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.id()
	b.Available = true
	m.books[b.ID] = *b
	return nil
}

func (m memBooks) Get(_ context.Context, id int64) (*model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, errs.ErrBookNotFound
	}
	return &b, nil
}

func (m memBooks) List(_ context.Context, f model.BookFilter) ([]model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Book
	for _, b := range m.books {
		if f.Available != nil && b.Available != *f.Available {
			continue
		}
		if f.TitleLike != "" && !strings.Contains(strings.ToLower(b.Title), strings.ToLower(f.TitleLike)) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memBooks) UpdateDetails(_ context.Context, b *model.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.books[b.ID]
	if !ok {
		return errs.ErrBookNotFound
	}
	next := *b
	next.Available = cur.Available
	m.books[b.ID] = next
	return nil
}

func (m memBooks) Delete(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return false, nil
	}
	for _, l := range m.loans {
		if l.BookID == id {
			return false, errs.ErrStillReferenced
		}
	}
	delete(m.books, id)
	return true, nil
}

func (m memBooks) SetAvailability(_ context.Context, id int64, available bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok || b.Available == available {
		return false, nil
	}
	b.Available = available
	m.books[id] = b
	return true, nil
}

/************ loans ************/

type memLoans struct{ *memStore }

var _ repository.LoanRepository = memLoans{}

func (m memLoans) Create(_ context.Context, l *model.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[l.BookID]; !ok {
		return errs.ErrBookNotFound
	}
	for _, x := range m.loans {
		if x.BookID == l.BookID && x.Active() && l.Active() {
			return errs.ErrBookUnavailable
		}
	}
	l.ID = m.id()
	m.loans[l.ID] = *l
	return nil
}

func (m memLoans) Get(_ context.Context, id int64) (*model.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[id]
	if !ok {
		return nil, errs.ErrLoanNotFound
	}
	return &l, nil
}

func (m memLoans) GetForUpdate(ctx context.Context, id int64) (*model.Loan, error) {
	return m.Get(ctx, id)
}

func (m memLoans) List(_ context.Context, f model.LoanFilter) ([]model.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Loan
	for _, l := range m.loans {
		if f.UserID != nil && l.UserID != *f.UserID {
			continue
		}
		if f.BookID != nil && l.BookID != *f.BookID {
			continue
		}
		if f.ActiveOnly && !l.Active() {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m memLoans) Update(_ context.Context, l *model.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[l.ID]; !ok {
		return errs.ErrLoanNotFound
	}
	if _, ok := m.books[l.BookID]; !ok {
		return errs.ErrBookNotFound
	}
	m.loans[l.ID] = *l
	return nil
}

func (m memLoans) Delete(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[id]; !ok {
		return false, nil
	}
	delete(m.loans, id)
	return true, nil
}

/************ reservations ************/

type memReservations struct{ *memStore }

var _ repository.ReservationRepository = memReservations{}

func (m memReservations) Create(_ context.Context, r *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[r.BookID]; !ok {
		return errs.ErrBookNotFound
	}
	r.ID = m.id()
	m.res[r.ID] = *r
	return nil
}

func (m memReservations) Get(_ context.Context, id int64) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.res[id]
	if !ok {
		return nil, errs.ErrReservationNotFound
	}
	return &r, nil
}

func (m memReservations) GetForUpdate(ctx context.Context, id int64) (*model.Reservation, error) {
	return m.Get(ctx, id)
}

func (m memReservations) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reservation
	for _, r := range m.res {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpectedStart.Before(out[j].ExpectedStart) })
	return out, nil
}

func (m memReservations) Update(_ context.Context, r *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.res[r.ID]; !ok {
		return errs.ErrReservationNotFound
	}
	m.res[r.ID] = *r
	return nil
}

func (m memReservations) Delete(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.res[id]; !ok {
		return false, nil
	}
	delete(m.res, id)
	return true, nil
}

/************ catalog ************/

type memCatalog struct{ *memStore }

var _ repository.CatalogRepository = memCatalog{}

func (m memCatalog) CreateAuthor(_ context.Context, a *model.Author) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	m.authors = append(m.authors, *a)
	return nil
}

func (m memCatalog) ListAuthors(context.Context) ([]model.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Author(nil), m.authors...), nil
}

func (m memCatalog) CreateCategory(_ context.Context, c *model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.cats {
		if x.Name == c.Name {
			return errs.ErrCategoryExists
		}
	}
	c.ID = m.id()
	m.cats = append(m.cats, *c)
	return nil
}

func (m memCatalog) ListCategories(context.Context) ([]model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Category(nil), m.cats...), nil
}

/************ harness ************/

const (
	adminEmail  = "admin@lib.test"
	libEmail    = "librarian@lib.test"
	readerEmail = "reader@lib.test"
	otherEmail  = "other@lib.test"
)

type harness struct {
	store   *memStore
	gate    *authz.Gate
	tokens  *token.Manager
	loans   *LoanServiceImpl
	res     *ReservationServiceImpl
	catalog *CatalogServiceImpl
	users   *UserServiceImpl

	ids map[string]uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := newMemStore()
	log := zaptest.NewLogger(t)
	users := memUsers{st}
	books := memBooks{st}
	gate := authz.NewGate(users)
	tm, err := token.NewManager([]byte("test-key"), "circ", "circ-api", time.Minute)
	require.NoError(t, err)

	h := &harness{
		store:   st,
		gate:    gate,
		tokens:  tm,
		loans:   NewLoanService(st, memLoans{st}, users, ledger.New(books), gate, log, nil),
		res:     NewReservationService(st, memReservations{st}, users, books, gate, log, nil),
		catalog: NewCatalogService(books, memCatalog{st}, gate),
		users:   NewUserService(users, gate, log),
		ids:     map[string]uuid.UUID{},
	}
	for email, lvl := range map[string]privilege.Level{
		adminEmail:  privilege.Admin,
		libEmail:    privilege.Librarian,
		readerEmail: privilege.Registered,
		otherEmail:  privilege.Registered,
	} {
		u := &model.User{ID: uuid.Must(uuid.NewV4()), Email: email, Privilege: lvl}
		require.NoError(t, users.Create(context.Background(), u))
		h.ids[email] = u.ID
	}
	return h
}

func (h *harness) addBook(t *testing.T, title string) int64 {
	t.Helper()
	b, err := h.catalog.CreateBook(context.Background(), libEmail, CreateBookInput{Title: title})
	require.NoError(t, err)
	return b.ID
}

func (h *harness) book(t *testing.T, id int64) model.Book {
	t.Helper()
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	b, ok := h.store.books[id]
	require.True(t, ok)
	return b
}

// requireAvailabilityConsistent checks that every book is unavailable exactly
// when an active loan references it.
func (h *harness) requireAvailabilityConsistent(t *testing.T) {
	t.Helper()
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	active := map[int64]int{}
	for _, l := range h.store.loans {
		if l.Active() {
			active[l.BookID]++
		}
	}
	for id, b := range h.store.books {
		require.LessOrEqual(t, active[id], 1, "book %d has several active loans", id)
		require.Equal(t, active[id] == 0, b.Available, "book %d availability", id)
	}
}
