// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/library-circulation/internal/privilege"
)

// Loan policy constants.
const (
	LoanPeriod        = 14 * 24 * time.Hour
	DefaultExtensions = 2
)

// Tokens collects issued access/refresh tokens.
type Tokens struct {
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time // access token expiry
	RefreshExpiresAt time.Time
}

// User represents an account. Passwords and refresh tokens are never stored in plaintext.
type User struct {
	ID                    uuid.UUID
	Email                 string // unique, case-sensitive
	Name                  string
	Phone                 string
	Address               string
	PasswordHash          string // PHC-encoded Argon2id
	Privilege             privilege.Level
	RefreshTokenHash      []byte     // sha256 of the opaque refresh token; nil when none
	RefreshTokenExpiresAt *time.Time // set iff RefreshTokenHash is set
	CreatedAt             time.Time
}

// BookQuality describes the physical state of a copy.
type BookQuality string

// Known qualities.
const (
	QualityNew     BookQuality = "New"
	QualityGood    BookQuality = "Good"
	QualityWorn    BookQuality = "Worn"
	QualityDamaged BookQuality = "Damaged"
)

// Valid reports whether q is a known quality.
func (q BookQuality) Valid() bool {
	switch q {
	case QualityNew, QualityGood, QualityWorn, QualityDamaged:
		return true
	}
	return false
}

// Book is a loanable copy. Available is owned by the availability ledger.
type Book struct {
	ID          int64
	Title       string
	AuthorID    *int64
	CategoryID  *int64
	Description string
	Available   bool
	ShelfNumber string
	Quality     BookQuality
}

// Author is a catalog author.
type Author struct {
	ID   int64
	Name string
}

// Category is a catalog category.
type Category struct {
	ID   int64
	Name string
}

// Loan is a checkout of one book by one user.
type Loan struct {
	ID              int64
	UserID          uuid.UUID
	BookID          int64
	Extensions      int // remaining allowed extensions
	StartDate       time.Time
	ExpectedEndDate time.Time
	ReturnDate      *time.Time
}

// Active reports whether the loan has not been returned yet.
func (l Loan) Active() bool { return l.ReturnDate == nil }

// Reservation is a request to borrow a book during a future window.
type Reservation struct {
	ID              int64
	UserID          uuid.UUID
	BookID          int64
	IsAccepted      bool
	ReservationDate time.Time
	ExpectedStart   time.Time
	ExpectedEnd     time.Time
}

// BookFilter narrows book listings. Nil fields are ignored.
type BookFilter struct {
	Available  *bool
	AuthorID   *int64
	CategoryID *int64
	TitleLike  string
	Limit      uint
	Offset     uint
}

// LoanFilter narrows loan listings. Nil fields are ignored.
type LoanFilter struct {
	UserID     *uuid.UUID
	BookID     *int64
	ActiveOnly bool
	Limit      uint
	Offset     uint
}
