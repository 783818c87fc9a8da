package convert

import (
	"time"

	"github.com/and161185/library-circulation/internal/model"
	"github.com/and161185/library-circulation/internal/privilege"
	"github.com/and161185/library-circulation/internal/service"
)

// --- helpers ---

func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

func quality(s *string) *model.BookQuality {
	if s == nil {
		return nil
	}
	q := model.BookQuality(*s)
	return &q
}

// --- domain -> wire ---

// ToUser projects a user without its credential material.
func ToUser(u model.User) User {
	return User{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		Address:   u.Address,
		Privilege: u.Privilege.String(),
		CreatedAt: u.CreatedAt,
	}
}

func ToTokens(t model.Tokens) Tokens {
	return Tokens{
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		TokenType:        "Bearer",
		ExpiresAt:        t.ExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}
}

func ToAuthor(a model.Author) Author       { return Author{ID: a.ID, Name: a.Name} }
func ToCategory(c model.Category) Category { return Category{ID: c.ID, Name: c.Name} }

func ToAuthors(in []model.Author) []Author        { return mapSlice(in, ToAuthor) }
func ToCategories(in []model.Category) []Category { return mapSlice(in, ToCategory) }

func ToBook(b model.Book) Book {
	return Book{
		ID:          b.ID,
		Title:       b.Title,
		AuthorID:    b.AuthorID,
		CategoryID:  b.CategoryID,
		Description: b.Description,
		Available:   b.Available,
		ShelfNumber: b.ShelfNumber,
		Quality:     string(b.Quality),
	}
}

func ToBooks(in []model.Book) []Book { return mapSlice(in, ToBook) }

func ToLoan(l model.Loan) Loan {
	return Loan{
		ID:              l.ID,
		UserID:          l.UserID.String(),
		BookID:          l.BookID,
		Extensions:      l.Extensions,
		StartDate:       l.StartDate,
		ExpectedEndDate: l.ExpectedEndDate,
		ReturnDate:      l.ReturnDate,
		Active:          l.Active(),
	}
}

func ToLoans(in []model.Loan) []Loan { return mapSlice(in, ToLoan) }

func ToReservation(r model.Reservation) Reservation {
	return Reservation{
		ID:              r.ID,
		UserID:          r.UserID.String(),
		BookID:          r.BookID,
		IsAccepted:      r.IsAccepted,
		ReservationDate: r.ReservationDate,
		ExpectedStart:   r.ExpectedStart,
		ExpectedEnd:     r.ExpectedEnd,
	}
}

func ToReservations(in []model.Reservation) []Reservation { return mapSlice(in, ToReservation) }

// --- wire -> domain ---

func FromRegister(in RegisterRequest) service.RegisterInput {
	return service.RegisterInput{
		Email:    in.Email,
		Password: in.Password,
		Name:     in.Name,
		Phone:    in.Phone,
		Address:  in.Address,
	}
}

func FromProfilePatch(in ProfilePatchRequest) model.ProfilePatch {
	return model.ProfilePatch{Name: in.Name, Phone: in.Phone, Address: in.Address}
}

func FromPrivilege(in PrivilegeRequest) privilege.Level {
	return privilege.Level(in.Privilege)
}

func FromCreateBook(in CreateBookRequest) service.CreateBookInput {
	return service.CreateBookInput{
		Title:       in.Title,
		AuthorID:    in.AuthorID,
		CategoryID:  in.CategoryID,
		Description: in.Description,
		ShelfNumber: in.ShelfNumber,
		Quality:     model.BookQuality(in.Quality),
	}
}

func FromBookPatch(in BookPatchRequest) model.BookPatch {
	return model.BookPatch{
		Title:       in.Title,
		AuthorID:    in.AuthorID,
		CategoryID:  in.CategoryID,
		Description: in.Description,
		ShelfNumber: in.ShelfNumber,
		Quality:     quality(in.Quality),
	}
}

// FromCreateLoan maps a checkout request. An absent start time means now.
func FromCreateLoan(in CreateLoanRequest) service.CreateLoanInput {
	var start time.Time
	if in.StartTime != nil {
		start = *in.StartTime
	}
	return service.CreateLoanInput{UserEmail: in.UserEmail, BookID: in.BookID, StartTime: start}
}

func FromLoanPatch(in LoanPatchRequest) model.LoanPatch {
	return model.LoanPatch{
		BookID:          in.BookID,
		Extensions:      in.Extensions,
		StartDate:       in.StartDate,
		ExpectedEndDate: in.ExpectedEndDate,
		ReturnDate:      in.ReturnDate,
	}
}

func FromCreateReservation(in CreateReservationRequest) service.CreateReservationInput {
	return service.CreateReservationInput{
		UserEmail:     in.UserEmail,
		BookID:        in.BookID,
		ExpectedStart: in.ExpectedStart,
		ExpectedEnd:   in.ExpectedEnd,
	}
}

func FromReservationPatch(in ReservationPatchRequest) model.ReservationPatch {
	return model.ReservationPatch{
		BookID:        in.BookID,
		IsAccepted:    in.IsAccepted,
		ExpectedStart: in.ExpectedStart,
		ExpectedEnd:   in.ExpectedEnd,
	}
}
