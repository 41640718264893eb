// Package mockstorage provides a testify-based mock implementation
// of the storage interface.
//
// Use it in service and handler tests to force storage failures the real
// in-memory backend cannot produce.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/linkshort/internal/models"
)

// StorageMock is a testify mock that implements storage.Storage.
type StorageMock struct {
	mock.Mock
}

// CreateUser mocks user creation.
func (m *StorageMock) CreateUser(ctx context.Context, usr *models.User) error {
	args := m.Called(ctx, usr)
	return args.Error(0)
}

// FindUserByEmail mocks fetching a user by email.
func (m *StorageMock) FindUserByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*models.User)
	return usr, args.Bool(1), args.Error(2)
}

// FindUserByID mocks fetching a user by ID.
func (m *StorageMock) FindUserByID(ctx context.Context, userID string) (*models.User, bool, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*models.User)
	return usr, args.Bool(1), args.Error(2)
}

// ActivateUser mocks the activation update.
func (m *StorageMock) ActivateUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// UpdateUserPassword mocks the password-hash update.
func (m *StorageMock) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	args := m.Called(ctx, userID, passwordHash)
	return args.Error(0)
}

// SaveResetToken mocks storing a reset-token record.
func (m *StorageMock) SaveResetToken(ctx context.Context, token *models.ResetToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// FindResetToken mocks fetching the reset-token record of a user.
func (m *StorageMock) FindResetToken(ctx context.Context, userID string) (*models.ResetToken, bool, error) {
	args := m.Called(ctx, userID)
	token, _ := args.Get(0).(*models.ResetToken)
	return token, args.Bool(1), args.Error(2)
}

// DeleteResetToken mocks removing the reset-token record of a user.
func (m *StorageMock) DeleteResetToken(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// InsertShortURL mocks inserting a new short-URL mapping.
func (m *StorageMock) InsertShortURL(ctx context.Context, record *models.ShortURL) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// FindShortURLByCode mocks finding the mapping for a short code.
func (m *StorageMock) FindShortURLByCode(ctx context.Context, code string) (*models.ShortURL, bool, error) {
	args := m.Called(ctx, code)
	record, _ := args.Get(0).(*models.ShortURL)
	return record, args.Bool(1), args.Error(2)
}

// IsCodeExists mocks the short-code existence check.
func (m *StorageMock) IsCodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

// IncrementClickCount mocks the click-counter update.
func (m *StorageMock) IncrementClickCount(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

// GetAllShortURLs mocks the administrative listing query.
func (m *StorageMock) GetAllShortURLs(ctx context.Context) ([]models.ShortURL, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]models.ShortURL)
	return records, args.Error(1)
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks closing the storage.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
