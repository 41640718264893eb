// Package shortener implements the short-URL registry: code generation,
// redirect resolution with click accounting, and the administrative listing.
package shortener

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/linkshort/internal/db/storage"
	"github.com/patric-chuzhbe/linkshort/internal/logger"
	"github.com/patric-chuzhbe/linkshort/internal/models"
)

const codeCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const codeLength = 6

const maxGenerationAttempts = 10

type urlsKeeper interface {
	InsertShortURL(ctx context.Context, record *models.ShortURL) error

	FindShortURLByCode(ctx context.Context, code string) (*models.ShortURL, bool, error)

	IsCodeExists(ctx context.Context, code string) (bool, error)

	IncrementClickCount(ctx context.Context, code string) error

	GetAllShortURLs(ctx context.Context) ([]models.ShortURL, error)
}

// Service maps original URLs to short codes and back.
type Service struct {
	db           urlsKeeper
	shortURLBase string
}

// New returns a Service building absolute short links on shortURLBase.
func New(db urlsKeeper, shortURLBase string) *Service {
	return &Service{
		db:           db,
		shortURLBase: strings.TrimRight(shortURLBase, "/"),
	}
}

// Shorten stores a mapping for fullURL under a freshly generated code and
// returns the absolute short link.
//
// Every call produces a new code, even for an already shortened URL. The
// uniqueness check is optimistic: a concurrent insert of the same code
// surfaces as storage.ErrUniqueViolation and triggers another attempt. After
// maxGenerationAttempts the call gives up with models.ErrCodeSpaceExhausted.
func (s *Service) Shorten(ctx context.Context, fullURL string) (string, error) {
	for attempt := 0; attempt < maxGenerationAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return "", fmt.Errorf("generating a short code: %w", err)
		}

		exists, err := s.db.IsCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("checking short code uniqueness: %w", err)
		}
		if exists {
			continue
		}

		record := &models.ShortURL{
			ID:        uuid.New().String(),
			FullURL:   fullURL,
			ShortCode: code,
			CreatedAt: time.Now(),
		}

		err = s.db.InsertShortURL(ctx, record)
		if errors.Is(err, storage.ErrUniqueViolation) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("saving the short URL mapping: %w", err)
		}

		return s.GetShortURL(code), nil
	}

	return "", models.ErrCodeSpaceExhausted
}

// Resolve returns the original URL for code and bumps its click counter.
//
// A failed counter update is logged and does not fail the redirect. Unknown
// codes yield models.ErrNotFound.
func (s *Service) Resolve(ctx context.Context, code string) (string, error) {
	record, found, err := s.db.FindShortURLByCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("looking up the short code: %w", err)
	}
	if !found {
		return "", models.ErrNotFound
	}

	if err := s.db.IncrementClickCount(ctx, code); err != nil {
		logger.Log.Errorln("failed to increment the click counter", "code", code, zap.Error(err))
	}

	return record.FullURL, nil
}

// ListAll returns every stored mapping with absolute short links.
func (s *Service) ListAll(ctx context.Context) ([]models.URLListItem, error) {
	records, err := s.db.GetAllShortURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing the short URLs: %w", err)
	}

	return funk.Map(records, func(record models.ShortURL) models.URLListItem {
		return models.URLListItem{
			FullURL:    record.FullURL,
			ShortURL:   s.GetShortURL(record.ShortCode),
			ClickCount: record.ClickCount,
			CreatedAt:  record.CreatedAt,
		}
	}).([]models.URLListItem), nil
}

// GetShortURL builds the absolute short link for a code.
func (s *Service) GetShortURL(code string) string {
	return s.shortURLBase + "/" + code
}

func generateCode() (string, error) {
	var sb strings.Builder
	sb.Grow(codeLength)

	charsetLength := big.NewInt(int64(len(codeCharset)))

	for i := 0; i < codeLength; i++ {
		randomIndex, err := rand.Int(rand.Reader, charsetLength)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeCharset[randomIndex.Int64()])
	}

	return sb.String(), nil
}
