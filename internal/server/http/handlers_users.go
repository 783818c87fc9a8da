package httpserver

import (
	"net/http"

	"github.com/and161185/library-circulation/internal/convert"
)

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Me(r.Context(), actorEmail(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToUser(*u))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.users.GetUser(r.Context(), actorEmail(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToUser(*u))
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req convert.ProfilePatchRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.users.UpdateProfile(r.Context(), actorEmail(r.Context()), id, convert.FromProfilePatch(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToUser(*u))
}

func (s *Server) setPrivilege(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req convert.PrivilegeRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.users.SetPrivilege(r.Context(), actorEmail(r.Context()), id, convert.FromPrivilege(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToUser(*u))
}

func (s *Server) listUserLoans(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	loans, err := s.loans.ListForUser(r.Context(), actorEmail(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToLoans(loans))
}

func (s *Server) listUserReservations(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.reservations.ListForUser(r.Context(), actorEmail(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToReservations(res))
}
