// Package httpserver exposes the circulation API over HTTP.
package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/and161185/library-circulation/internal/metrics"
	"github.com/and161185/library-circulation/internal/service"
	"github.com/and161185/library-circulation/internal/token"
)

// Deps are the collaborators of Server. Log, Metrics, MetricsHandler and Health are optional.
type Deps struct {
	Auth         service.AuthService
	Users        service.UserService
	Catalog      service.CatalogService
	Loans        service.LoanService
	Reservations service.ReservationService
	Tokens       *token.Manager

	Log            *zap.Logger
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Health         func(ctx context.Context) error
}

// Server wires services into HTTP handlers.
type Server struct {
	auth         service.AuthService
	users        service.UserService
	catalog      service.CatalogService
	loans        service.LoanService
	reservations service.ReservationService
	tokens       *token.Manager

	log      *zap.Logger
	met      *metrics.Metrics
	metricsH http.Handler
	health   func(ctx context.Context) error
	validate *validator.Validate
}

// New constructs a Server from its dependencies.
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Server{
		auth:         d.Auth,
		users:        d.Users,
		catalog:      d.Catalog,
		loans:        d.Loans,
		reservations: d.Reservations,
		tokens:       d.Tokens,
		log:          d.Log,
		met:          d.Metrics,
		metricsH:     d.MetricsHandler,
		health:       d.Health,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Handler returns the router with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.healthz)
	if s.metricsH != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsH)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Post("/refresh", s.refresh)
		r.With(s.authMiddleware).Post("/revoke", s.revoke)
	})

	// Catalog reads are public.
	r.Get("/books", s.listBooks)
	r.Get("/books/{id}", s.getBook)
	r.Get("/authors", s.listAuthors)
	r.Get("/categories", s.listCategories)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/books", s.createBook)
		r.Patch("/books/{id}", s.updateBook)
		r.Delete("/books/{id}", s.deleteBook)
		r.Post("/authors", s.createAuthor)
		r.Post("/categories", s.createCategory)

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", s.me)
			r.Get("/{id}", s.getUser)
			r.Patch("/{id}", s.updateProfile)
			r.Put("/{id}/privilege", s.setPrivilege)
			r.Get("/{id}/loans", s.listUserLoans)
			r.Get("/{id}/reservations", s.listUserReservations)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Get("/", s.listLoans)
			r.Post("/", s.createLoan)
			r.Get("/{id}", s.getLoan)
			r.Patch("/{id}", s.updateLoan)
			r.Delete("/{id}", s.deleteLoan)
			r.Post("/{id}/extend", s.extendLoan)
			r.Post("/{id}/return", s.returnLoan)
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", s.createReservation)
			r.Get("/{id}", s.getReservation)
			r.Patch("/{id}", s.updateReservation)
			r.Delete("/{id}", s.deleteReservation)
			r.Post("/{id}/accept", s.acceptReservation)
			r.Post("/{id}/deny", s.denyReservation)
		})
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "storage unreachable")
			return
		}
	}
	writeSuccess(w, http.StatusOK, map[string]string{"state": "ok"})
}
