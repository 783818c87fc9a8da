// Package convert holds the JSON wire types of the HTTP API and their
// conversions to and from domain models. The server and the CLI share them.
package convert

import "time"

// --- requests (client -> server) ---

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type NameRequest struct {
	Name string `json:"name" validate:"required"`
}

type PrivilegeRequest struct {
	Privilege string `json:"privilege" validate:"required"`
}

// ProfilePatchRequest is a partial profile update; absent fields are kept.
type ProfilePatchRequest struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

type CreateBookRequest struct {
	Title       string `json:"title" validate:"required"`
	AuthorID    *int64 `json:"author_id,omitempty" validate:"omitempty,gt=0"`
	CategoryID  *int64 `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	Description string `json:"description,omitempty"`
	ShelfNumber string `json:"shelf_number,omitempty"`
	Quality     string `json:"quality,omitempty" validate:"omitempty,oneof=New Good Worn Damaged"`
}

// BookPatchRequest updates catalog fields. Availability is not part of it.
type BookPatchRequest struct {
	Title       *string `json:"title,omitempty"`
	AuthorID    *int64  `json:"author_id,omitempty" validate:"omitempty,gt=0"`
	CategoryID  *int64  `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	Description *string `json:"description,omitempty"`
	ShelfNumber *string `json:"shelf_number,omitempty"`
	Quality     *string `json:"quality,omitempty" validate:"omitempty,oneof=New Good Worn Damaged"`
}

type CreateLoanRequest struct {
	UserEmail string     `json:"user_email" validate:"required,email"`
	BookID    int64      `json:"book_id" validate:"required,gt=0"`
	StartTime *time.Time `json:"start_time,omitempty"`
}

type LoanPatchRequest struct {
	BookID          *int64     `json:"book_id,omitempty" validate:"omitempty,gt=0"`
	Extensions      *int       `json:"extensions,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	ExpectedEndDate *time.Time `json:"expected_end_date,omitempty"`
	ReturnDate      *time.Time `json:"return_date,omitempty"`
}

type ReturnRequest struct {
	At *time.Time `json:"at,omitempty"`
}

type CreateReservationRequest struct {
	UserEmail     string    `json:"user_email,omitempty" validate:"omitempty,email"`
	BookID        int64     `json:"book_id" validate:"required,gt=0"`
	ExpectedStart time.Time `json:"expected_start" validate:"required"`
	ExpectedEnd   time.Time `json:"expected_end" validate:"required"`
}

type ReservationPatchRequest struct {
	BookID        *int64     `json:"book_id,omitempty" validate:"omitempty,gt=0"`
	IsAccepted    *bool      `json:"is_accepted,omitempty"`
	ExpectedStart *time.Time `json:"expected_start,omitempty"`
	ExpectedEnd   *time.Time `json:"expected_end,omitempty"`
}

// --- responses (server -> client) ---

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Privilege string    `json:"privilege"`
	CreatedAt time.Time `json:"created_at"`
}

type Tokens struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Book struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	AuthorID    *int64 `json:"author_id,omitempty"`
	CategoryID  *int64 `json:"category_id,omitempty"`
	Description string `json:"description,omitempty"`
	Available   bool   `json:"available"`
	ShelfNumber string `json:"shelf_number,omitempty"`
	Quality     string `json:"quality"`
}

type Loan struct {
	ID              int64      `json:"id"`
	UserID          string     `json:"user_id"`
	BookID          int64      `json:"book_id"`
	Extensions      int        `json:"extensions"`
	StartDate       time.Time  `json:"start_date"`
	ExpectedEndDate time.Time  `json:"expected_end_date"`
	ReturnDate      *time.Time `json:"return_date,omitempty"`
	Active          bool       `json:"active"`
}

type Reservation struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"user_id"`
	BookID          int64     `json:"book_id"`
	IsAccepted      bool      `json:"is_accepted"`
	ReservationDate time.Time `json:"reservation_date"`
	ExpectedStart   time.Time `json:"expected_start"`
	ExpectedEnd     time.Time `json:"expected_end"`
}
