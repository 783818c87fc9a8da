package httpserver

import (
	"net/http"

	"github.com/and161185/library-circulation/internal/convert"
	"github.com/and161185/library-circulation/internal/errs"
)

func (s *Server) createReservation(w http.ResponseWriter, r *http.Request) {
	var req convert.CreateReservationRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.reservations.Create(r.Context(), actorEmail(r.Context()), convert.FromCreateReservation(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, convert.ToReservation(*res))
}

func (s *Server) getReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.reservations.Get(r.Context(), id, actorEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToReservation(*res))
}

func (s *Server) updateReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req convert.ReservationPatchRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.reservations.Update(r.Context(), id, convert.FromReservationPatch(req), actorEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToReservation(*res))
}

func (s *Server) acceptReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.reservations.Accept(r.Context(), id, actorEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToReservation(*res))
}

// denyReservation deletes the request; a denied reservation is not kept.
func (s *Server) denyReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.reservations.Deny(r.Context(), id, actorEmail(r.Context())); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok, err := s.reservations.Delete(r.Context(), id, actorEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		s.fail(w, r, errs.ErrReservationNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
