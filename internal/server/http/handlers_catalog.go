package httpserver

import (
	"net/http"

	"github.com/and161185/library-circulation/internal/convert"
	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/model"
)

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	var (
		f   model.BookFilter
		err error
	)
	if f.Available, err = queryBool(r, "available"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.AuthorID, err = queryInt64(r, "author_id"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.CategoryID, err = queryInt64(r, "category_id"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.Limit, err = queryUint(r, "limit"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.Offset, err = queryUint(r, "offset"); err != nil {
		s.fail(w, r, err)
		return
	}
	f.TitleLike = r.URL.Query().Get("title")

	books, err := s.catalog.ListBooks(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToBooks(books))
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := s.catalog.GetBook(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToBook(*b))
}

func (s *Server) createBook(w http.ResponseWriter, r *http.Request) {
	var req convert.CreateBookRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := s.catalog.CreateBook(r.Context(), actorEmail(r.Context()), convert.FromCreateBook(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, convert.ToBook(*b))
}

func (s *Server) updateBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req convert.BookPatchRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := s.catalog.UpdateBook(r.Context(), actorEmail(r.Context()), id, convert.FromBookPatch(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToBook(*b))
}

func (s *Server) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok, err := s.catalog.DeleteBook(r.Context(), actorEmail(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		s.fail(w, r, errs.ErrBookNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := s.catalog.ListAuthors(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToAuthors(authors))
}

func (s *Server) createAuthor(w http.ResponseWriter, r *http.Request) {
	var req convert.NameRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	a, err := s.catalog.CreateAuthor(r.Context(), actorEmail(r.Context()), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, convert.ToAuthor(*a))
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.ListCategories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, convert.ToCategories(cats))
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req convert.NameRequest
	if err := decodeBody(r, s.validate, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.catalog.CreateCategory(r.Context(), actorEmail(r.Context()), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, convert.ToCategory(*c))
}
