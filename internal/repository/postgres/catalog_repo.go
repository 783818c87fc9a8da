package postgres

import (
	"context"

	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/model"
)

// CatalogRepo implements CatalogRepository using PostgreSQL.
type CatalogRepo struct{ db *DB }

// NewCatalogRepo constructs a catalog repository.
func NewCatalogRepo(db *DB) *CatalogRepo { return &CatalogRepo{db: db} }

// CreateAuthor inserts an author.
func (r *CatalogRepo) CreateAuthor(ctx context.Context, a *model.Author) error {
	return r.db.q(ctx).QueryRow(ctx, `INSERT INTO authors (name) VALUES ($1) RETURNING id`, a.Name).Scan(&a.ID)
}

// ListAuthors returns all authors by name.
func (r *CatalogRepo) ListAuthors(ctx context.Context) ([]model.Author, error) {
	rows, err := r.db.q(ctx).Query(ctx, `SELECT id, name FROM authors ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Author
	for rows.Next() {
		var a model.Author
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateCategory inserts a category. Names are unique.
func (r *CatalogRepo) CreateCategory(ctx context.Context, c *model.Category) error {
	err := r.db.q(ctx).QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id`, c.Name).Scan(&c.ID)
	if isUniqueViolation(err) {
		return errs.ErrCategoryExists
	}
	return err
}

// ListCategories returns all categories by name.
func (r *CatalogRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.q(ctx).Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
