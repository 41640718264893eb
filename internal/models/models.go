// Package models defines the persistent records, the request/response payloads
// of the HTTP API, and the error taxonomy shared across the application.
package models

import (
	"errors"
	"time"
)

// User is an account record. Activated stays false until the owner follows
// the activation link mailed on signup.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Activated    bool      `json:"activated" bson:"activated"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// ResetToken is a password-reset credential. At most one live record exists
// per user; issuing a new one replaces the old.
type ResetToken struct {
	UserID    string    `json:"user_id" bson:"_id"`
	Token     string    `json:"token" bson:"token"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
}

// ShortURL maps a globally unique short code to its destination.
// Records are never deleted; ClickCount grows monotonically.
type ShortURL struct {
	ID         string    `json:"id" bson:"_id"`
	FullURL    string    `json:"full_url" bson:"full_url"`
	ShortCode  string    `json:"short_code" bson:"short_code"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	ClickCount int64     `json:"click_count" bson:"click_count"`
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type SignupResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetConfirmRequest struct {
	Password1 string `json:"password_1" validate:"required,min=8"`
	Token     string `json:"token" validate:"required"`
}

type ShortenRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// MessageResponse is the generic `{"message": ...}` envelope the API answers with.
type MessageResponse struct {
	Message string `json:"message"`
}

// URLListItem is one row of the administrative URL listing.
type URLListItem struct {
	FullURL    string    `json:"full_url"`
	ShortURL   string    `json:"short_url"`
	ClickCount int64     `json:"click_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// EmailJob is a queued outgoing mail handled by the mailqueue workers.
type EmailJob struct {
	To      string
	Subject string
	Body    string
}

const (
	StorageTypeUnknown = iota
	StorageTypeMongo
	StorageTypePostgresql
	StorageTypeMemory
)

var (
	// ErrDuplicateEmail is returned on signup when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrNotFound is returned when a user, short URL, or token record is absent.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidCredentials is returned on login when the email is unknown or
	// the password does not match. The two cases are deliberately
	// indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNotActivated is returned on login with correct credentials for an
	// account that has not followed its activation link yet.
	ErrNotActivated = errors.New("account not activated")

	// ErrInvalidToken is returned when a presented reset token has no stored
	// record for the user or does not match the stored value.
	ErrInvalidToken = errors.New("invalid reset token")

	// ErrTokenExpired is returned when the stored reset token is past its
	// expiry; the record is removed on detection.
	ErrTokenExpired = errors.New("reset token expired")

	// ErrCodeSpaceExhausted is returned when short-code generation keeps
	// colliding beyond the attempt budget.
	ErrCodeSpaceExhausted = errors.New("the number of attempts to generate a unique short code has been exceeded")
)
