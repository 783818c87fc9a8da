package model

import "time"

// Patch structs carry optional fields. The merge rule is uniform:
// a non-nil field overrides the current value, a nil field keeps it.

// LoanPatch is a partial update of a loan.
type LoanPatch struct {
	BookID          *int64
	Extensions      *int
	StartDate       *time.Time
	ExpectedEndDate *time.Time
	ReturnDate      *time.Time
}

// Apply returns cur with the present fields of p applied.
func (p LoanPatch) Apply(cur Loan) Loan {
	out := cur
	if p.BookID != nil {
		out.BookID = *p.BookID
	}
	if p.Extensions != nil {
		out.Extensions = *p.Extensions
	}
	if p.StartDate != nil {
		out.StartDate = *p.StartDate
	}
	if p.ExpectedEndDate != nil {
		out.ExpectedEndDate = *p.ExpectedEndDate
	}
	if p.ReturnDate != nil {
		rd := *p.ReturnDate
		out.ReturnDate = &rd
	}
	return out
}

// ReservationPatch is a partial update of a reservation.
type ReservationPatch struct {
	BookID        *int64
	IsAccepted    *bool
	ExpectedStart *time.Time
	ExpectedEnd   *time.Time
}

// Apply returns cur with the present fields of p applied.
func (p ReservationPatch) Apply(cur Reservation) Reservation {
	out := cur
	if p.BookID != nil {
		out.BookID = *p.BookID
	}
	if p.IsAccepted != nil {
		out.IsAccepted = *p.IsAccepted
	}
	if p.ExpectedStart != nil {
		out.ExpectedStart = *p.ExpectedStart
	}
	if p.ExpectedEnd != nil {
		out.ExpectedEnd = *p.ExpectedEnd
	}
	return out
}

// ProfilePatch is a partial update of a user's contact info.
type ProfilePatch struct {
	Name    *string
	Phone   *string
	Address *string
}

// Apply returns cur with the present fields of p applied.
func (p ProfilePatch) Apply(cur User) User {
	out := cur
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Phone != nil {
		out.Phone = *p.Phone
	}
	if p.Address != nil {
		out.Address = *p.Address
	}
	return out
}

// BookPatch is a partial update of catalog fields. It has no availability field.
type BookPatch struct {
	Title       *string
	AuthorID    *int64
	CategoryID  *int64
	Description *string
	ShelfNumber *string
	Quality     *BookQuality
}

// Apply returns cur with the present fields of p applied.
func (p BookPatch) Apply(cur Book) Book {
	out := cur
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.AuthorID != nil {
		id := *p.AuthorID
		out.AuthorID = &id
	}
	if p.CategoryID != nil {
		id := *p.CategoryID
		out.CategoryID = &id
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.ShelfNumber != nil {
		out.ShelfNumber = *p.ShelfNumber
	}
	if p.Quality != nil {
		out.Quality = *p.Quality
	}
	return out
}
