// Package storage declares the persistence interface shared by the MongoDB,
// PostgreSQL, and in-memory backends.
package storage

import (
	"context"
	"errors"

	"github.com/patric-chuzhbe/linkshort/internal/models"
)

// ErrUniqueViolation is returned by Create/Insert operations when a unique
// index rejects the record. Short-code generation treats it as a collision
// signal and retries with a fresh code.
var ErrUniqueViolation = errors.New("unique constraint violation")

// Storage is the persistence gateway over the three record kinds.
//
// Find* methods report absence through the boolean, not through an error.
// DeleteResetToken is idempotent: deleting a missing record is not an error.
type Storage interface {
	CreateUser(ctx context.Context, usr *models.User) error

	FindUserByEmail(ctx context.Context, email string) (*models.User, bool, error)

	FindUserByID(ctx context.Context, userID string) (*models.User, bool, error)

	ActivateUser(ctx context.Context, userID string) error

	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error

	SaveResetToken(ctx context.Context, token *models.ResetToken) error

	FindResetToken(ctx context.Context, userID string) (*models.ResetToken, bool, error)

	DeleteResetToken(ctx context.Context, userID string) error

	InsertShortURL(ctx context.Context, record *models.ShortURL) error

	FindShortURLByCode(ctx context.Context, code string) (*models.ShortURL, bool, error)

	IsCodeExists(ctx context.Context, code string) (bool, error)

	IncrementClickCount(ctx context.Context, code string) error

	GetAllShortURLs(ctx context.Context) ([]models.ShortURL, error)

	Ping(ctx context.Context) error

	Close() error
}
