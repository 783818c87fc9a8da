package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/library-circulation/internal/errs"
	"github.com/and161185/library-circulation/internal/model"
	"github.com/and161185/library-circulation/internal/privilege"
)

func TestCatalog_BookLifecycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.catalog.CreateBook(ctx, readerEmail, CreateBookInput{Title: "X"})
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, err = h.catalog.CreateBook(ctx, libEmail, CreateBookInput{Title: " "})
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = h.catalog.CreateBook(ctx, libEmail, CreateBookInput{Title: "X", Quality: "Mint"})
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	b, err := h.catalog.CreateBook(ctx, libEmail, CreateBookInput{Title: "Solaris", ShelfNumber: "S-1"})
	require.NoError(t, err)
	require.True(t, b.Available)
	require.Equal(t, model.QualityGood, b.Quality)

	worn := model.QualityWorn
	title := "Solaris (2nd ed.)"
	got, err := h.catalog.UpdateBook(ctx, adminEmail, b.ID, model.BookPatch{Title: &title, Quality: &worn})
	require.NoError(t, err)
	require.Equal(t, title, got.Title)
	require.Equal(t, "S-1", got.ShelfNumber)

	_, err = h.catalog.UpdateBook(ctx, readerEmail, b.ID, model.BookPatch{Title: &title})
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, err = h.catalog.UpdateBook(ctx, adminEmail, 999, model.BookPatch{Title: &title})
	require.ErrorIs(t, err, errs.ErrBookNotFound)

	avail := true
	list, err := h.catalog.ListBooks(ctx, model.BookFilter{Available: &avail, TitleLike: "solaris"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	ok, err := h.catalog.DeleteBook(ctx, libEmail, b.ID)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = h.catalog.GetBook(ctx, b.ID)
	require.ErrorIs(t, err, errs.ErrBookNotFound)
}

func TestCatalog_UpdateKeepsAvailabilityOfLentBook(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	b := h.addBook(t, "B")

	_, err := h.loans.Create(ctx, libEmail, CreateLoanInput{UserEmail: readerEmail, BookID: b})
	require.NoError(t, err)

	shelf := "Z-9"
	got, err := h.catalog.UpdateBook(ctx, libEmail, b, model.BookPatch{ShelfNumber: &shelf})
	require.NoError(t, err)
	require.Equal(t, "Z-9", got.ShelfNumber)
	require.False(t, h.book(t, b).Available)

	_, err = h.catalog.DeleteBook(ctx, libEmail, b)
	require.ErrorIs(t, err, errs.ErrConflict)
	h.requireAvailabilityConsistent(t)
}

func TestCatalog_AuthorsAndCategories(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.catalog.CreateAuthor(ctx, readerEmail, "Lem")
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, err = h.catalog.CreateAuthor(ctx, libEmail, "")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	a, err := h.catalog.CreateAuthor(ctx, libEmail, "Lem")
	require.NoError(t, err)
	require.NotZero(t, a.ID)

	_, err = h.catalog.CreateCategory(ctx, adminEmail, "SF")
	require.NoError(t, err)
	_, err = h.catalog.CreateCategory(ctx, adminEmail, "SF")
	require.ErrorIs(t, err, errs.ErrConflict)

	authors, err := h.catalog.ListAuthors(ctx)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	cats, err := h.catalog.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
}

func TestUsers(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	reader := h.ids[readerEmail]

	me, err := h.users.Me(ctx, readerEmail)
	require.NoError(t, err)
	require.Equal(t, reader, me.ID)
	_, err = h.users.Me(ctx, "ghost@lib.test")
	require.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = h.users.GetUser(ctx, otherEmail, reader)
	require.ErrorIs(t, err, errs.ErrForbidden)
	u, err := h.users.GetUser(ctx, libEmail, reader)
	require.NoError(t, err)
	require.Equal(t, readerEmail, u.Email)

	phone := "555-0100"
	u, err = h.users.UpdateProfile(ctx, readerEmail, reader, model.ProfilePatch{Phone: &phone})
	require.NoError(t, err)
	require.Equal(t, phone, u.Phone)
	_, err = h.users.UpdateProfile(ctx, otherEmail, reader, model.ProfilePatch{Phone: &phone})
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = h.users.SetPrivilege(ctx, libEmail, reader, privilege.Librarian)
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, err = h.users.SetPrivilege(ctx, adminEmail, h.ids[adminEmail], privilege.Registered)
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, err = h.users.SetPrivilege(ctx, adminEmail, reader, "Root")
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	u, err = h.users.SetPrivilege(ctx, adminEmail, reader, privilege.Librarian)
	require.NoError(t, err)
	require.Equal(t, privilege.Librarian, u.Privilege)

	// The promoted user now passes staff checks.
	b := h.addBook(t, "B")
	_, err = h.loans.Create(ctx, readerEmail, CreateLoanInput{UserEmail: otherEmail, BookID: b})
	require.NoError(t, err)
}
