// Package tokens manages password-reset tokens: signed, time-boxed, at most
// one live token per user.
//
// The lifecycle per user is NoToken -> TokenIssued -> NoToken, where the
// return transition is either an explicit Revoke (after a successful password
// update) or removal on expiry detection.
package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/linkshort/internal/logger"
	"github.com/patric-chuzhbe/linkshort/internal/models"
)

type tokenKeeper interface {
	SaveResetToken(ctx context.Context, token *models.ResetToken) error

	FindResetToken(ctx context.Context, userID string) (*models.ResetToken, bool, error)

	DeleteResetToken(ctx context.Context, userID string) error
}

// Claims are the JWT claims embedded in a reset token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Manager issues, validates, and revokes reset tokens.
type Manager struct {
	db        tokenKeeper
	secretKey []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

type initOptions struct {
	now func() time.Time
}

// InitOption is a functional option for New.
type InitOption func(*initOptions)

// WithClock overrides the time source. Tests use it to move past expiry
// without sleeping.
func WithClock(now func() time.Time) InitOption {
	return func(options *initOptions) {
		options.now = now
	}
}

// New returns a Manager signing tokens with secretKey, valid for tokenTTL.
func New(db tokenKeeper, secretKey []byte, tokenTTL time.Duration, optionsProto ...InitOption) *Manager {
	options := &initOptions{
		now: time.Now,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	return &Manager{
		db:        db,
		secretKey: secretKey,
		tokenTTL:  tokenTTL,
		now:       options.now,
	}
}

// Issue creates a fresh reset token for the user. Any previously issued token
// is revoked first, which keeps the single-active-token invariant; under
// concurrent requests for the same user the storage upsert makes the last
// writer win.
func (m *Manager) Issue(ctx context.Context, userID string) (*models.ResetToken, error) {
	if err := m.Revoke(ctx, userID); err != nil {
		return nil, fmt.Errorf("revoking the previous reset token: %w", err)
	}

	now := m.now()
	expiresAt := now.Add(m.tokenTTL)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims).SignedString(m.secretKey)
	if err != nil {
		return nil, fmt.Errorf("signing the reset token: %w", err)
	}

	record := &models.ResetToken{
		UserID:    userID,
		Token:     tokenString,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}

	if err := m.db.SaveResetToken(ctx, record); err != nil {
		return nil, fmt.Errorf("saving the reset token: %w", err)
	}

	logger.Log.Infoln("reset token issued", "user_id", userID, "expires_at", expiresAt)

	return record, nil
}

// Validate checks the presented token against the stored record of the user.
//
// It returns models.ErrInvalidToken when no record exists or the value does
// not match. When the stored token is past its expiry the record is removed
// and models.ErrTokenExpired is returned. A nil return does NOT consume the
// token; the caller revokes it explicitly once the password update is done.
func (m *Manager) Validate(ctx context.Context, userID, presented string) error {
	record, found, err := m.db.FindResetToken(ctx, userID)
	if err != nil {
		return fmt.Errorf("looking up the reset token: %w", err)
	}

	if !found || record.Token != presented {
		return models.ErrInvalidToken
	}

	if m.now().After(record.ExpiresAt) {
		if err := m.db.DeleteResetToken(ctx, userID); err != nil {
			logger.Log.Errorln("failed to clear an expired reset token", "user_id", userID, zap.Error(err))
		}

		return models.ErrTokenExpired
	}

	return nil
}

// Revoke deletes the token record of the user, if any. Idempotent.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	return m.db.DeleteResetToken(ctx, userID)
}
