package httpserver

import (
	"net/http"

	"github.com/and161185/library-circulation/internal/convert"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req convert.RegisterRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.auth.Register(r.Context(), convert.FromRegister(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, convert.ToUser(*u))
}

// login performs no existence pre-check; any failure is the same 401.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req convert.LoginRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	tok, err := s.auth.AuthenticateFromIP(r.Context(), req.Email, req.Password, remoteIP(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToTokens(tok))
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req convert.RefreshRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	tok, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToTokens(tok))
}

func (s *Server) revoke(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth.Revoke(r.Context(), actorEmail(r.Context())); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
