package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"

	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/model"
)

const (
	dialectPostgres = "postgres"
	defaultPageSize = 50
	maxPageSize     = 500
)

var bookColumns = []any{"id", "title", "author_id", "category_id", "description", "available", "shelf_number", "quality"}

// BookRepo implements BookRepository using PostgreSQL.
type BookRepo struct{ db *DB }

// NewBookRepo constructs a book repository.
func NewBookRepo(db *DB) *BookRepo { return &BookRepo{db: db} }

// Create inserts a book. New copies are always available.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	const q = `
INSERT INTO books (title, author_id, category_id, description, available, shelf_number, quality)
VALUES ($1, $2, $3, $4, true, $5, $6)
RETURNING id`
	err := r.db.q(ctx).QueryRow(ctx, q,
		b.Title, b.AuthorID, b.CategoryID, b.Description, b.ShelfNumber, string(b.Quality),
	).Scan(&b.ID)
	if err != nil {
		return mapCatalogFK(err)
	}
	b.Available = true
	return nil
}

// Get selects a book by ID.
func (r *BookRepo) Get(ctx context.Context, id int64) (*model.Book, error) {
	const q = `
SELECT id, title, author_id, category_id, description, available, shelf_number, quality
FROM books WHERE id=$1`
	var (
		b       model.Book
		quality string
	)
	err := r.db.q(ctx).QueryRow(ctx, q, id).Scan(
		&b.ID, &b.Title, &b.AuthorID, &b.CategoryID, &b.Description, &b.Available, &b.ShelfNumber, &quality)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrBookNotFound
		}
		return nil, err
	}
	b.Quality = model.BookQuality(quality)
	return &b, nil
}

// List returns books matching f ordered by ID.
func (r *BookRepo) List(ctx context.Context, f model.BookFilter) ([]model.Book, error) {
	q, args, err := buildBookListQuery(f)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.q(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Book
	for rows.Next() {
		var (
			b       model.Book
			quality string
		)
		if err := rows.Scan(&b.ID, &b.Title, &b.AuthorID, &b.CategoryID, &b.Description,
			&b.Available, &b.ShelfNumber, &quality); err != nil {
			return nil, err
		}
		b.Quality = model.BookQuality(quality)
		out = append(out, b)
	}
	return out, rows.Err()
}

func buildBookListQuery(f model.BookFilter) (string, []any, error) {
	where := goqu.Ex{}
	if f.Available != nil {
		where["available"] = *f.Available
	}
	if f.AuthorID != nil {
		where["author_id"] = *f.AuthorID
	}
	if f.CategoryID != nil {
		where["category_id"] = *f.CategoryID
	}
	stmt := goqu.Dialect(dialectPostgres).
		From("books").
		Select(bookColumns...).
		Where(where).
		Order(goqu.I("id").Asc()).
		Limit(pageSize(f.Limit)).
		Offset(f.Offset).
		Prepared(true)
	if f.TitleLike != "" {
		stmt = stmt.Where(goqu.C("title").ILike("%" + likeEscaper.Replace(f.TitleLike) + "%"))
	}
	return stmt.ToSQL()
}

// likeEscaper quotes LIKE wildcards with the default backslash escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func pageSize(n uint) uint {
	switch {
	case n == 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	default:
		return n
	}
}

// UpdateDetails stores catalog fields. Availability is left untouched.
func (r *BookRepo) UpdateDetails(ctx context.Context, b *model.Book) error {
	const q = `
UPDATE books
SET title=$2, author_id=$3, category_id=$4, description=$5, shelf_number=$6, quality=$7
WHERE id=$1`
	tag, err := r.db.q(ctx).Exec(ctx, q,
		b.ID, b.Title, b.AuthorID, b.CategoryID, b.Description, b.ShelfNumber, string(b.Quality))
	if err != nil {
		return mapCatalogFK(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrBookNotFound
	}
	return nil
}

// Delete removes a book. Books with loan history cannot be deleted.
func (r *BookRepo) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM books WHERE id=$1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, errs.ErrStillReferenced
		}
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetAvailability writes available only when it differs from the stored value.
// The returned flag is true when this call performed the transition.
func (r *BookRepo) SetAvailability(ctx context.Context, id int64, available bool) (bool, error) {
	const q = `UPDATE books SET available=$2 WHERE id=$1 AND available<>$2`
	tag, err := r.db.q(ctx).Exec(ctx, q, id, available)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func mapCatalogFK(err error) error {
	if !isForeignKeyViolation(err) {
		return err
	}
	switch constraintName(err) {
	case "books_author_id_fkey":
		return errs.ErrAuthorNotFound
	case "books_category_id_fkey":
		return errs.ErrCategoryNotFound
	}
	return errs.Invalid("unknown author or category")
}
