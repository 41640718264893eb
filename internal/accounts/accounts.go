// Package accounts implements the account lifecycle: signup with mailed
// activation links, login with session tokens, and the two-step password
// reset flow.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/linkshort/internal/db/storage"
	"github.com/patric-chuzhbe/linkshort/internal/logger"
	"github.com/patric-chuzhbe/linkshort/internal/models"
)

type usersKeeper interface {
	CreateUser(ctx context.Context, usr *models.User) error

	FindUserByEmail(ctx context.Context, email string) (*models.User, bool, error)

	FindUserByID(ctx context.Context, userID string) (*models.User, bool, error)

	ActivateUser(ctx context.Context, userID string) error

	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
}

type resetTokener interface {
	Issue(ctx context.Context, userID string) (*models.ResetToken, error)

	Validate(ctx context.Context, userID, presented string) error

	Revoke(ctx context.Context, userID string) error
}

type sessionIssuer interface {
	BuildSessionToken(userID string) (string, error)
}

type mailEnqueuer interface {
	EnqueueJob(job *models.EmailJob)
}

// Service implements signup, activation, login, and password reset.
type Service struct {
	db       usersKeeper
	tokens   resetTokener
	sessions sessionIssuer
	mail     mailEnqueuer
	baseURL  string
}

// New wires the account service to its storage, token manager, session
// issuer, and outgoing mail queue. Links in mail are built on baseURL.
func New(
	db usersKeeper,
	tokens resetTokener,
	sessions sessionIssuer,
	mail mailEnqueuer,
	baseURL string,
) *Service {
	return &Service{
		db:       db,
		tokens:   tokens,
		sessions: sessions,
		mail:     mail,
		baseURL:  baseURL,
	}
}

// Signup registers a new, not yet activated user and mails an activation
// link. It returns models.ErrDuplicateEmail when the email is taken.
func (s *Service) Signup(ctx context.Context, email, password string) (string, error) {
	_, found, err := s.db.FindUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("checking email availability: %w", err)
	}
	if found {
		return "", models.ErrDuplicateEmail
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing the password: %w", err)
	}

	usr := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(passwordHash),
		Activated:    false,
		CreatedAt:    time.Now(),
	}

	err = s.db.CreateUser(ctx, usr)
	if errors.Is(err, storage.ErrUniqueViolation) {
		return "", models.ErrDuplicateEmail
	}
	if err != nil {
		return "", fmt.Errorf("creating the user: %w", err)
	}

	link := s.baseURL + "/activate-account/" + usr.ID
	s.mail.EnqueueJob(&models.EmailJob{
		To:      email,
		Subject: "Account Activation",
		Body: "Please click the link below to activate your account, " +
			"you will only be able to login after activation\n" + link,
	})

	logger.Log.Infoln("user signed up", "user_id", usr.ID)

	return usr.ID, nil
}

// ActivateAccount marks the user as activated. Repeated activation of an
// already active account succeeds; unknown IDs yield models.ErrNotFound.
func (s *Service) ActivateAccount(ctx context.Context, userID string) error {
	_, found, err := s.db.FindUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("looking up the user: %w", err)
	}
	if !found {
		return models.ErrNotFound
	}

	if err := s.db.ActivateUser(ctx, userID); err != nil {
		return fmt.Errorf("activating the user: %w", err)
	}

	logger.Log.Infoln("user activated", "user_id", userID)

	return nil
}

// Login verifies the credentials and returns a session token.
//
// Unknown email and wrong password both yield models.ErrInvalidCredentials.
// The password is checked before the activation state, so ErrNotActivated is
// only reported to callers who proved ownership of the credentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	usr, found, err := s.db.FindUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("looking up the user: %w", err)
	}
	if !found {
		return "", models.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(password)); err != nil {
		return "", models.ErrInvalidCredentials
	}

	if !usr.Activated {
		return "", models.ErrNotActivated
	}

	token, err := s.sessions.BuildSessionToken(usr.ID)
	if err != nil {
		return "", fmt.Errorf("building the session token: %w", err)
	}

	return token, nil
}

// RequestPasswordReset issues a reset token for the account behind email and
// mails the reset link. Unknown emails are not an error: the call logs and
// returns nil so responses do not reveal which emails are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, found, err := s.db.FindUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up the user: %w", err)
	}
	if !found {
		logger.Log.Infoln("password reset requested for an unregistered email")

		return nil
	}

	token, err := s.tokens.Issue(ctx, usr.ID)
	if err != nil {
		return fmt.Errorf("issuing the reset token: %w", err)
	}

	link := s.baseURL + "/reset-password/" + usr.ID + "/" + token.Token
	s.mail.EnqueueJob(&models.EmailJob{
		To:      email,
		Subject: "Password Reset",
		Body: "Please click the link below to reset the password, " +
			"for security reasons the link will expire in the next 10 minutes\n" + link,
	})

	return nil
}

// ConfirmPasswordReset validates the presented reset token and, on success,
// replaces the password of the user and revokes the token.
//
// Token problems surface as models.ErrInvalidToken or models.ErrTokenExpired.
func (s *Service) ConfirmPasswordReset(ctx context.Context, userID, token, newPassword string) error {
	if err := s.tokens.Validate(ctx, userID, token); err != nil {
		return err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing the new password: %w", err)
	}

	if err := s.db.UpdateUserPassword(ctx, userID, string(passwordHash)); err != nil {
		return fmt.Errorf("updating the password: %w", err)
	}

	if err := s.tokens.Revoke(ctx, userID); err != nil {
		logger.Log.Errorln("failed to revoke a consumed reset token", "user_id", userID, zap.Error(err))
	}

	logger.Log.Infoln("password reset completed", "user_id", userID)

	return nil
}

// IsEmailRegistered reports whether a user with the email exists.
func (s *Service) IsEmailRegistered(ctx context.Context, email string) (bool, error) {
	_, found, err := s.db.FindUserByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("looking up the user: %w", err)
	}

	return found, nil
}
