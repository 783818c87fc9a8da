package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/library-circulation/internal/model"
	"github.com/and161185/library-circulation/internal/privilege"
	"github.com/and161185/library-circulation/internal/service"
	"github.com/and161185/library-circulation/internal/token"
)

// Fakes embed the service interface; calling a method a test did not stub panics,
// which the recover middleware reports as 500.

type fakeAuth struct {
	service.AuthService
	register func(service.RegisterInput) (*model.User, error)
	login    func(email, password, ip string) (model.Tokens, error)
	refresh  func(string) (model.Tokens, error)
	revoked  string
}

func (f *fakeAuth) Register(_ context.Context, in service.RegisterInput) (*model.User, error) {
	return f.register(in)
}
func (f *fakeAuth) AuthenticateFromIP(_ context.Context, email, password, ip string) (model.Tokens, error) {
	return f.login(email, password, ip)
}
func (f *fakeAuth) Refresh(_ context.Context, raw string) (model.Tokens, error) {
	return f.refresh(raw)
}
func (f *fakeAuth) Revoke(_ context.Context, email string) (bool, error) {
	f.revoked = email
	return true, nil
}

type fakeLoans struct {
	service.LoanService
	create func(actor string, in service.CreateLoanInput) (*model.Loan, error)
	ret    func(id int64, actor string, at time.Time) (*model.Loan, error)
	del    func(id int64, actor string) (bool, error)
	list   func(actor string, f model.LoanFilter) ([]model.Loan, error)
}

func (f *fakeLoans) Create(_ context.Context, actor string, in service.CreateLoanInput) (*model.Loan, error) {
	return f.create(actor, in)
}
func (f *fakeLoans) Return(_ context.Context, id int64, actor string, at time.Time) (*model.Loan, error) {
	return f.ret(id, actor, at)
}
func (f *fakeLoans) Delete(_ context.Context, id int64, actor string) (bool, error) {
	return f.del(id, actor)
}
func (f *fakeLoans) List(_ context.Context, actor string, lf model.LoanFilter) ([]model.Loan, error) {
	return f.list(actor, lf)
}

type fakeCatalog struct {
	service.CatalogService
	list func(model.BookFilter) ([]model.Book, error)
	get  func(int64) (*model.Book, error)
}

func (f *fakeCatalog) ListBooks(_ context.Context, bf model.BookFilter) ([]model.Book, error) {
	return f.list(bf)
}
func (f *fakeCatalog) GetBook(_ context.Context, id int64) (*model.Book, error) { return f.get(id) }

type fakeReservations struct {
	service.ReservationService
	deny func(id int64, actor string) error
}

func (f *fakeReservations) Deny(_ context.Context, id int64, actor string) error {
	return f.deny(id, actor)
}

type fakeUsers struct {
	service.UserService
	me func(actor string) (*model.User, error)
}

func (f *fakeUsers) Me(_ context.Context, actor string) (*model.User, error) { return f.me(actor) }

type testEnv struct {
	srv    *Server
	h      http.Handler
	tokens *token.Manager
	auth   *fakeAuth
	loans  *fakeLoans
	cat    *fakeCatalog
	res    *fakeReservations
	users  *fakeUsers
}

func newEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	tm, err := token.NewManager([]byte("test-key"), "circ", "circ-api", time.Minute)
	require.NoError(t, err)
	env := &testEnv{
		tokens: tm,
		auth:   &fakeAuth{},
		loans:  &fakeLoans{},
		cat:    &fakeCatalog{},
		res:    &fakeReservations{},
		users:  &fakeUsers{},
	}
	d := Deps{
		Auth:         env.auth,
		Users:        env.users,
		Catalog:      env.cat,
		Loans:        env.loans,
		Reservations: env.res,
		Tokens:       tm,
		Log:          zaptest.NewLogger(t),
	}
	if mutate != nil {
		mutate(&d)
	}
	env.srv = New(d)
	env.h = env.srv.Handler()
	return env
}

func (e *testEnv) bearer(t *testing.T, email string, role privilege.Level) string {
	t.Helper()
	raw, _, err := e.tokens.Sign(email, role)
	require.NoError(t, err)
	return "Bearer " + raw
}

func (e *testEnv) do(t *testing.T, method, target, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  string              `json:"status"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Data    jsoniter.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func mustUUID() uuid.UUID { return uuid.Must(uuid.NewV4()) }
