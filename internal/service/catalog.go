package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/library-circulation/internal/authz"
	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/model"
	"github.com/and161185/library-circulation/internal/privilege"
	"github.com/and161185/library-circulation/internal/repository"
)

// CatalogService manages authors, categories and book metadata.
// Reads are public; writes are staff only. Nothing here changes availability.
type CatalogService interface {
	CreateAuthor(ctx context.Context, actorEmail, name string) (*model.Author, error)
	ListAuthors(ctx context.Context) ([]model.Author, error)
	CreateCategory(ctx context.Context, actorEmail, name string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateBook(ctx context.Context, actorEmail string, in CreateBookInput) (*model.Book, error)
	GetBook(ctx context.Context, id int64) (*model.Book, error)
	ListBooks(ctx context.Context, f model.BookFilter) ([]model.Book, error)
	UpdateBook(ctx context.Context, actorEmail string, id int64, patch model.BookPatch) (*model.Book, error)
	DeleteBook(ctx context.Context, actorEmail string, id int64) (bool, error)
}

// CreateBookInput describes a new copy. An empty Quality means Good.
type CreateBookInput struct {
	Title       string
	AuthorID    *int64
	CategoryID  *int64
	Description string
	ShelfNumber string
	Quality     model.BookQuality
}

type CatalogServiceImpl struct {
	books   repository.BookRepository
	catalog repository.CatalogRepository
	gate    *authz.Gate
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(books repository.BookRepository, catalog repository.CatalogRepository, gate *authz.Gate) *CatalogServiceImpl {
	return &CatalogServiceImpl{books: books, catalog: catalog, gate: gate}
}

func (s *CatalogServiceImpl) CreateAuthor(ctx context.Context, actorEmail, name string) (*model.Author, error) {
	if _, err := s.gate.Require(ctx, actorEmail, privilege.Staff...); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Invalid("author name is required")
	}
	a := &model.Author{Name: name}
	if err := s.catalog.CreateAuthor(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *CatalogServiceImpl) ListAuthors(ctx context.Context) ([]model.Author, error) {
	return s.catalog.ListAuthors(ctx)
}

func (s *CatalogServiceImpl) CreateCategory(ctx context.Context, actorEmail, name string) (*model.Category, error) {
	if _, err := s.gate.Require(ctx, actorEmail, privilege.Staff...); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Invalid("category name is required")
	}
	c := &model.Category{Name: name}
	if err := s.catalog.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogServiceImpl) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.catalog.ListCategories(ctx)
}

// CreateBook adds an available copy.
func (s *CatalogServiceImpl) CreateBook(ctx context.Context, actorEmail string, in CreateBookInput) (*model.Book, error) {
	if _, err := s.gate.Require(ctx, actorEmail, privilege.Staff...); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, errs.Invalid("title is required")
	}
	if in.Quality == "" {
		in.Quality = model.QualityGood
	}
	if !in.Quality.Valid() {
		return nil, errs.Invalid(fmt.Sprintf("unknown quality %q", in.Quality))
	}
	b := &model.Book{
		Title:       in.Title,
		AuthorID:    in.AuthorID,
		CategoryID:  in.CategoryID,
		Description: in.Description,
		ShelfNumber: in.ShelfNumber,
		Quality:     in.Quality,
	}
	if err := s.books.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *CatalogServiceImpl) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	b, err := s.books.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("book %d: %w", id, err)
	}
	return b, nil
}

func (s *CatalogServiceImpl) ListBooks(ctx context.Context, f model.BookFilter) ([]model.Book, error) {
	return s.books.List(ctx, f)
}

// UpdateBook edits catalog fields only.
func (s *CatalogServiceImpl) UpdateBook(ctx context.Context, actorEmail string, id int64, patch model.BookPatch) (*model.Book, error) {
	if _, err := s.gate.Require(ctx, actorEmail, privilege.Staff...); err != nil {
		return nil, err
	}
	if patch.Quality != nil && !patch.Quality.Valid() {
		return nil, errs.Invalid(fmt.Sprintf("unknown quality %q", *patch.Quality))
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, errs.Invalid("title must not be empty")
	}
	cur, err := s.books.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("book %d: %w", id, err)
	}
	next := patch.Apply(*cur)
	if err := s.books.UpdateDetails(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// DeleteBook removes a copy. A copy with loan history is kept.
func (s *CatalogServiceImpl) DeleteBook(ctx context.Context, actorEmail string, id int64) (bool, error) {
	if _, err := s.gate.Require(ctx, actorEmail, privilege.Staff...); err != nil {
		return false, err
	}
	return s.books.Delete(ctx, id)
}
