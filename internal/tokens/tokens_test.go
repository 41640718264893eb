package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/linkshort/internal/db/memorystorage"
	"github.com/patric-chuzhbe/linkshort/internal/logger"
	"github.com/patric-chuzhbe/linkshort/internal/mockstorage"
	"github.com/patric-chuzhbe/linkshort/internal/models"
)

const testSecretKey = "test-secret-key"

func newTestManager(t *testing.T, options ...InitOption) (*Manager, *memorystorage.MemoryStorage) {
	t.Helper()

	require.NoError(t, logger.Init("debug"))

	db, err := memorystorage.New()
	require.NoError(t, err)

	return New(db, []byte(testSecretKey), 10*time.Minute, options...), db
}

func TestIssueProducesVerifiableToken(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	record, err := manager.Issue(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", record.UserID)
	assert.NotEmpty(t, record.Token)
	assert.Equal(t, 10*time.Minute, record.ExpiresAt.Sub(record.CreatedAt))

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(record.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecretKey), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestIssueReplacesPreviousToken(t *testing.T) {
	now := time.Now()
	manager, db := newTestManager(t, WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))
	ctx := context.Background()

	first, err := manager.Issue(ctx, "user-1")
	require.NoError(t, err)

	second, err := manager.Issue(ctx, "user-1")
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	assert.ErrorIs(t, manager.Validate(ctx, "user-1", first.Token), models.ErrInvalidToken)
	assert.NoError(t, manager.Validate(ctx, "user-1", second.Token))

	stored, found, err := db.FindResetToken(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second.Token, stored.Token)
}

func TestValidateUnknownUser(t *testing.T) {
	manager, _ := newTestManager(t)

	err := manager.Validate(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestValidateMismatchedToken(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Issue(ctx, "user-1")
	require.NoError(t, err)

	err = manager.Validate(ctx, "user-1", "not-the-issued-token")
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestValidateExpiredTokenIsRemoved(t *testing.T) {
	now := time.Now()
	manager, db := newTestManager(t, WithClock(func() time.Time {
		return now
	}))
	ctx := context.Background()

	record, err := manager.Issue(ctx, "user-1")
	require.NoError(t, err)

	now = now.Add(11 * time.Minute)

	err = manager.Validate(ctx, "user-1", record.Token)
	assert.ErrorIs(t, err, models.ErrTokenExpired)

	_, found, err := db.FindResetToken(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestValidateDoesNotConsumeOnSuccess(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	record, err := manager.Issue(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, manager.Validate(ctx, "user-1", record.Token))
	assert.NoError(t, manager.Validate(ctx, "user-1", record.Token))
}

func TestRevokeIsIdempotent(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	record, err := manager.Issue(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(ctx, "user-1"))
	require.NoError(t, manager.Revoke(ctx, "user-1"))

	assert.ErrorIs(t, manager.Validate(ctx, "user-1", record.Token), models.ErrInvalidToken)
}

func TestValidateStorageFailure(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	db := &mockstorage.StorageMock{}
	db.On("FindResetToken", mock.Anything, "user-1").
		Return(nil, false, errors.New("storage is down"))

	manager := New(db, []byte(testSecretKey), 10*time.Minute)

	err := manager.Validate(context.Background(), "user-1", "token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrInvalidToken)
	db.AssertExpectations(t)
}
