// Package memorystorage provides a mutex-guarded in-memory implementation of
// the storage interface. It backs the unit tests and serves as a fallback when
// neither MONGO_URL nor DATABASE_DSN is configured.
package memorystorage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/patric-chuzhbe/linkshort/internal/db/storage"
	"github.com/patric-chuzhbe/linkshort/internal/models"
)

// MemoryStorage keeps every record kind in maps, applying the same uniqueness
// rules the database backends get from their unique indexes.
type MemoryStorage struct {
	mu sync.RWMutex

	usersByID    map[string]*models.User
	usersByEmail map[string]string

	resetTokensByUserID map[string]*models.ResetToken

	shortURLsByCode map[string]*models.ShortURL
	insertionOrder  []string
}

// New returns an empty MemoryStorage.
func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		usersByID:           map[string]*models.User{},
		usersByEmail:        map[string]string{},
		resetTokensByUserID: map[string]*models.ResetToken{},
		shortURLsByCode:     map[string]*models.ShortURL{},
	}, nil
}

// CreateUser stores a new user, rejecting duplicate emails with
// storage.ErrUniqueViolation.
func (s *MemoryStorage) CreateUser(ctx context.Context, usr *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	emailKey := normalizeEmail(usr.Email)
	if _, exists := s.usersByEmail[emailKey]; exists {
		return storage.ErrUniqueViolation
	}

	clone := *usr
	s.usersByID[usr.ID] = &clone
	s.usersByEmail[emailKey] = usr.ID

	return nil
}

// FindUserByEmail looks a user up by email, case-insensitively.
func (s *MemoryStorage) FindUserByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, found := s.usersByEmail[normalizeEmail(email)]
	if !found {
		return nil, false, nil
	}

	clone := *s.usersByID[userID]

	return &clone, true, nil
}

// FindUserByID looks a user up by ID.
func (s *MemoryStorage) FindUserByID(ctx context.Context, userID string) (*models.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	usr, found := s.usersByID[userID]
	if !found {
		return nil, false, nil
	}

	clone := *usr

	return &clone, true, nil
}

// ActivateUser marks the user activated. Activating twice is a no-op.
func (s *MemoryStorage) ActivateUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, found := s.usersByID[userID]
	if !found {
		return models.ErrNotFound
	}
	usr.Activated = true

	return nil
}

// UpdateUserPassword replaces the stored password hash.
func (s *MemoryStorage) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, found := s.usersByID[userID]
	if !found {
		return models.ErrNotFound
	}
	usr.PasswordHash = passwordHash

	return nil
}

// SaveResetToken stores the token record for its user, replacing any previous
// one (last writer wins, mirroring the upsert the database backends do).
func (s *MemoryStorage) SaveResetToken(ctx context.Context, token *models.ResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *token
	s.resetTokensByUserID[token.UserID] = &clone

	return nil
}

// FindResetToken returns the live token record for the user, if any.
func (s *MemoryStorage) FindResetToken(ctx context.Context, userID string) (*models.ResetToken, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, found := s.resetTokensByUserID[userID]
	if !found {
		return nil, false, nil
	}

	clone := *token

	return &clone, true, nil
}

// DeleteResetToken removes the token record for the user. Idempotent.
func (s *MemoryStorage) DeleteResetToken(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.resetTokensByUserID, userID)

	return nil
}

// InsertShortURL stores a new mapping, rejecting duplicate codes with
// storage.ErrUniqueViolation.
func (s *MemoryStorage) InsertShortURL(ctx context.Context, record *models.ShortURL) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.shortURLsByCode[record.ShortCode]; exists {
		return storage.ErrUniqueViolation
	}

	clone := *record
	s.shortURLsByCode[record.ShortCode] = &clone
	s.insertionOrder = append(s.insertionOrder, record.ShortCode)

	return nil
}

// FindShortURLByCode returns the mapping for the code, if any.
func (s *MemoryStorage) FindShortURLByCode(ctx context.Context, code string) (*models.ShortURL, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, found := s.shortURLsByCode[code]
	if !found {
		return nil, false, nil
	}

	clone := *record

	return &clone, true, nil
}

// IsCodeExists reports whether the code is already taken.
func (s *MemoryStorage) IsCodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.shortURLsByCode[code]

	return exists, nil
}

// IncrementClickCount bumps the click counter of the mapping.
func (s *MemoryStorage) IncrementClickCount(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, found := s.shortURLsByCode[code]
	if !found {
		return models.ErrNotFound
	}
	record.ClickCount++

	return nil
}

// GetAllShortURLs returns every mapping in insertion order.
func (s *MemoryStorage) GetAllShortURLs(ctx context.Context) ([]models.ShortURL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order := make([]string, len(s.insertionOrder))
	copy(order, s.insertionOrder)
	sort.SliceStable(order, func(i, j int) bool {
		return s.shortURLsByCode[order[i]].CreatedAt.Before(s.shortURLsByCode[order[j]].CreatedAt)
	})

	result := make([]models.ShortURL, 0, len(order))
	for _, code := range order {
		result = append(result, *s.shortURLsByCode[code])
	}

	return result, nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
