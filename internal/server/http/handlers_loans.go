package httpserver

import (
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/library-circulation/internal/convert"
	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/model"
)

func (s *Server) createLoan(w http.ResponseWriter, r *http.Request) {
	var req convert.CreateLoanRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	l, err := s.loans.Create(r.Context(), actorEmail(r.Context()), convert.FromCreateLoan(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, convert.ToLoan(*l))
}

// listLoans is the staff-wide listing; filters come from the query string.
func (s *Server) listLoans(w http.ResponseWriter, r *http.Request) {
	var (
		f   model.LoanFilter
		err error
	)
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, perr := uuid.FromString(raw)
		if perr != nil {
			s.fail(w, r, errs.Invalid("user_id must be a uuid"))
			return
		}
		f.UserID = &id
	}
	if f.BookID, err = queryInt64(r, "book_id"); err != nil {
		s.fail(w, r, err)
		return
	}
	active, err := queryBool(r, "active")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f.ActiveOnly = active != nil && *active
	if f.Limit, err = queryUint(r, "limit"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.Offset, err = queryUint(r, "offset"); err != nil {
		s.fail(w, r, err)
		return
	}

	loans, err := s.loans.List(r.Context(), actorEmail(r.Context()), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToLoans(loans))
}

func (s *Server) getLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	l, err := s.loans.Get(r.Context(), id, actorEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToLoan(*l))
}

func (s *Server) updateLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req convert.LoanPatchRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	l, err := s.loans.Update(r.Context(), id, convert.FromLoanPatch(req), actorEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToLoan(*l))
}

func (s *Server) extendLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	l, err := s.loans.Extend(r.Context(), id, actorEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToLoan(*l))
}

// returnLoan accepts an optional body {"at": ...}; an empty body means now.
func (s *Server) returnLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var (
		at  time.Time
		req convert.ReturnRequest
	)
	if _, err := decodeOptionalBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.At != nil {
		at = *req.At
	}
	l, err := s.loans.Return(r.Context(), id, actorEmail(r.Context()), at)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToLoan(*l))
}

func (s *Server) deleteLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok, err := s.loans.Delete(r.Context(), id, actorEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		s.fail(w, r, errs.ErrLoanNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
