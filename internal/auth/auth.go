// Package auth issues and verifies session JWTs and provides the middleware
// guarding authenticated endpoints. Tokens travel in the Authorization header,
// with or without the "Bearer " prefix.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/linkshort/internal/logger"
	"github.com/patric-chuzhbe/linkshort/internal/models"
)

type userKeeper interface {
	FindUserByID(ctx context.Context, userID string) (*models.User, bool, error)
}

// Auth handles session token management and request authentication.
type Auth struct {
	db        userKeeper
	secretKey []byte
	tokenTTL  time.Duration
}

// Claims represents the JWT claims of a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserIDKey is the context key used to store and retrieve the authenticated user's ID.
const UserIDKey ContextKey = "userID"

// New creates a new Auth handler with the given user data access layer,
// JWT signing secret, and session lifetime.
func New(db userKeeper, secretKey []byte, tokenTTL time.Duration) *Auth {
	return &Auth{
		db:        db,
		secretKey: secretKey,
		tokenTTL:  tokenTTL,
	}
}

// BuildSessionToken returns a signed session JWT for the user, expiring after
// the configured lifetime.
func (a *Auth) BuildSessionToken(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
		UserID: userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	tokenString, err := token.SignedString(a.secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserIDFromToken verifies the signature and expiry of a session token and
// returns the embedded user ID.
func (a *Auth) GetUserIDFromToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.secretKey, nil
		},
	)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", models.ErrInvalidToken
	}

	return claims.UserID, nil
}

// RequireSession is an HTTP middleware rejecting requests without a valid
// session token of an existing, activated user. On success the user ID is
// stored in the request context under UserIDKey.
func (a *Auth) RequireSession(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		tokenString := getTokenStringFromAuthorizationHeader(request)
		if tokenString == "" {
			writeUnauthorized(response, "Authorization token is missing")

			return
		}

		userID, err := a.GetUserIDFromToken(tokenString)
		if err != nil {
			logger.Log.Debugln("Error calling the `a.GetUserIDFromToken()`: ", zap.Error(err))
			writeUnauthorized(response, "Invalid or expired session token")

			return
		}

		usr, found, err := a.db.FindUserByID(request.Context(), userID)
		if err != nil {
			logger.Log.Debugln("Error calling the `a.db.FindUserByID()`: ", zap.Error(err))
			response.WriteHeader(http.StatusInternalServerError)

			return
		}
		if !found || !usr.Activated {
			writeUnauthorized(response, "Invalid or expired session token")

			return
		}

		ctx := context.WithValue(request.Context(), UserIDKey, usr.ID)
		requestWithCtx := request.WithContext(ctx)

		h.ServeHTTP(response, requestWithCtx)
	}

	return http.HandlerFunc(middleware)
}

func getTokenStringFromAuthorizationHeader(request *http.Request) string {
	tokenString := request.Header.Get("Authorization")

	return strings.TrimPrefix(tokenString, "Bearer ")
}

func writeUnauthorized(response http.ResponseWriter, message string) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(response).Encode(models.MessageResponse{Message: message}); err != nil {
		logger.Log.Debugln("Error encoding the unauthorized response: ", zap.Error(err))
	}
}
