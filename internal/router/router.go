// Package router wires the HTTP surface of the service: account endpoints,
// the shortener API, and the redirect handler.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/linkshort/internal/gzippedhttp"
	"github.com/patric-chuzhbe/linkshort/internal/logger"
	"github.com/patric-chuzhbe/linkshort/internal/models"
)

type accountsManager interface {
	Signup(ctx context.Context, email, password string) (string, error)

	ActivateAccount(ctx context.Context, userID string) error

	Login(ctx context.Context, email, password string) (string, error)

	RequestPasswordReset(ctx context.Context, email string) error

	ConfirmPasswordReset(ctx context.Context, userID, token, newPassword string) error

	IsEmailRegistered(ctx context.Context, email string) (bool, error)
}

type urlsShortener interface {
	Shorten(ctx context.Context, fullURL string) (string, error)

	Resolve(ctx context.Context, code string) (string, error)

	ListAll(ctx context.Context) ([]models.URLListItem, error)
}

type sessionGuard interface {
	RequireSession(h http.Handler) http.Handler
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Router holds the handler dependencies.
type Router struct {
	accounts  accountsManager
	shortener urlsShortener
	db        pinger
	validate  *validator.Validate
}

// New builds the chi router with logging and gzip middleware applied.
func New(
	accounts accountsManager,
	shortener urlsShortener,
	sessions sessionGuard,
	db pinger,
) *chi.Mux {
	r := &Router{
		accounts:  accounts,
		shortener: shortener,
		db:        db,
		validate:  validator.New(),
	}

	router := chi.NewRouter()
	router.Use(logger.WithLoggingHTTPMiddleware)
	router.Use(gzippedhttp.UngzipRequest)
	router.Use(gzippedhttp.GzipResponse)

	router.Post(`/signup`, r.PostSignup)
	router.Post(`/activate-account/{user_id}`, r.PostActivateAccount)
	router.Post(`/email`, r.PostEmail)
	router.Post(`/forgotpassword/email`, r.PostForgotPasswordEmail)
	router.Post(`/reset-password`, r.PostResetPassword)
	router.Post(`/reset-password-confirmation/{userid}/{token}`, r.PostResetPasswordConfirmation)
	router.Post(`/login`, r.PostLogin)
	router.Post(`/urlshortener`, r.PostURLShortener)
	router.With(sessions.RequireSession).Get(`/urlList`, r.GetURLList)
	router.Get(`/ping`, r.GetPing)
	router.Get(`/{short_url}`, r.GetRedirectToFullURL)

	return router
}

// PostSignup registers a new account and answers with its ID.
func (r *Router) PostSignup(response http.ResponseWriter, request *http.Request) {
	payload := &models.SignupRequest{}
	if !r.decodeAndValidate(response, request, payload) {
		return
	}

	userID, err := r.accounts.Signup(request.Context(), payload.Email, payload.Password)
	if errors.Is(err, models.ErrDuplicateEmail) {
		writeJSON(response, http.StatusForbidden, models.MessageResponse{Message: "User already exists"})

		return
	}
	if err != nil {
		writeInternalError(response, err)

		return
	}

	writeJSON(response, http.StatusOK, models.SignupResponse{
		Message: "Signup successful, activation mail sent",
		UserID:  userID,
	})
}

// PostActivateAccount marks the account behind the path parameter as activated.
func (r *Router) PostActivateAccount(response http.ResponseWriter, request *http.Request) {
	userID := chi.URLParam(request, "user_id")

	err := r.accounts.ActivateAccount(request.Context(), userID)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(response, http.StatusNotFound, models.MessageResponse{Message: "No such user"})

		return
	}
	if err != nil {
		writeInternalError(response, err)

		return
	}

	writeJSON(response, http.StatusOK, models.MessageResponse{Message: "Account activated"})
}

// PostEmail reports whether an email is still available for signup.
func (r *Router) PostEmail(response http.ResponseWriter, request *http.Request) {
	payload := &models.EmailRequest{}
	if !r.decodeAndValidate(response, request, payload) {
		return
	}

	registered, err := r.accounts.IsEmailRegistered(request.Context(), payload.Email)
	if err != nil {
		writeInternalError(response, err)

		return
	}
	if registered {
		writeJSON(response, http.StatusForbidden, models.MessageResponse{Message: "User already exists"})

		return
	}

	writeJSON(response, http.StatusOK, models.MessageResponse{Message: "email available"})
}

// PostForgotPasswordEmail reports whether an email belongs to a registered
// account, as the first step of the password reset flow.
func (r *Router) PostForgotPasswordEmail(response http.ResponseWriter, request *http.Request) {
	payload := &models.EmailRequest{}
	if !r.decodeAndValidate(response, request, payload) {
		return
	}

	registered, err := r.accounts.IsEmailRegistered(request.Context(), payload.Email)
	if err != nil {
		writeInternalError(response, err)

		return
	}
	if !registered {
		writeJSON(response, http.StatusForbidden, models.MessageResponse{Message: "email does not exist"})

		return
	}

	writeJSON(response, http.StatusOK, models.MessageResponse{Message: "email exist"})
}

// PostResetPassword mails a reset link. The answer is the same whether or not
// the email is registered, so the endpoint cannot be used to probe accounts.
func (r *Router) PostResetPassword(response http.ResponseWriter, request *http.Request) {
	payload := &models.EmailRequest{}
	if !r.decodeAndValidate(response, request, payload) {
		return
	}

	if err := r.accounts.RequestPasswordReset(request.Context(), payload.Email); err != nil {
		writeInternalError(response, err)

		return
	}

	writeJSON(response, http.StatusOK, models.MessageResponse{Message: "Mail sent"})
}

// PostResetPasswordConfirmation validates the reset token from the request
// body and replaces the password of the user.
func (r *Router) PostResetPasswordConfirmation(response http.ResponseWriter, request *http.Request) {
	userID := chi.URLParam(request, "userid")

	payload := &models.ResetConfirmRequest{}
	if !r.decodeAndValidate(response, request, payload) {
		return
	}

	err := r.accounts.ConfirmPasswordReset(request.Context(), userID, payload.Token, payload.Password1)
	if errors.Is(err, models.ErrInvalidToken) {
		writeJSON(response, http.StatusUnauthorized, models.MessageResponse{Message: "Invalid reset password Token does not match"})

		return
	}
	if errors.Is(err, models.ErrTokenExpired) {
		writeJSON(response, http.StatusUnauthorized, models.MessageResponse{Message: "Token expired"})

		return
	}
	if err != nil {
		writeInternalError(response, err)

		return
	}

	writeJSON(response, http.StatusOK, models.MessageResponse{Message: "Password updated successfully"})
}

// PostLogin checks the credentials and answers with a session token.
func (r *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	payload := &models.LoginRequest{}
	if !r.decodeAndValidate(response, request, payload) {
		return
	}

	token, err := r.accounts.Login(request.Context(), payload.Email, payload.Password)
	if errors.Is(err, models.ErrInvalidCredentials) {
		writeJSON(response, http.StatusUnauthorized, models.MessageResponse{Message: "Invalid email or password"})

		return
	}
	if errors.Is(err, models.ErrNotActivated) {
		writeJSON(response, http.StatusUnauthorized, models.MessageResponse{
			Message: "Account not yet Activated, Please activate by using link sent to your mail",
		})

		return
	}
	if err != nil {
		writeInternalError(response, err)

		return
	}

	writeJSON(response, http.StatusOK, models.LoginResponse{
		Message: "Login Successful",
		Token:   token,
	})
}

// PostURLShortener shortens a URL and answers with the absolute short link.
func (r *Router) PostURLShortener(response http.ResponseWriter, request *http.Request) {
	payload := &models.ShortenRequest{}
	if !r.decodeAndValidate(response, request, payload) {
		return
	}

	shortURL, err := r.shortener.Shorten(request.Context(), payload.URL)
	if err != nil {
		writeInternalError(response, err)

		return
	}

	writeJSON(response, http.StatusOK, models.MessageResponse{Message: shortURL})
}

// GetURLList answers with every stored mapping. Guarded by the session
// middleware.
func (r *Router) GetURLList(response http.ResponseWriter, request *http.Request) {
	items, err := r.shortener.ListAll(request.Context())
	if err != nil {
		writeInternalError(response, err)

		return
	}
	if len(items) == 0 {
		writeJSON(response, http.StatusNotFound, models.MessageResponse{Message: "Not Found..."})

		return
	}

	writeJSON(response, http.StatusOK, items)
}

// GetRedirectToFullURL redirects a short link to its destination.
func (r *Router) GetRedirectToFullURL(response http.ResponseWriter, request *http.Request) {
	code := chi.URLParam(request, "short_url")

	fullURL, err := r.shortener.Resolve(request.Context(), code)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(response, http.StatusNotFound, models.MessageResponse{Message: "Not Found..."})

		return
	}
	if err != nil {
		writeInternalError(response, err)

		return
	}

	http.Redirect(response, request, fullURL, http.StatusFound)
}

// GetPing checks the health of the storage layer.
func (r *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := r.db.Ping(request.Context()); err != nil {
		writeInternalError(response, err)

		return
	}

	response.WriteHeader(http.StatusOK)
}

func (r *Router) decodeAndValidate(response http.ResponseWriter, request *http.Request, payload interface{}) bool {
	if err := json.NewDecoder(request.Body).Decode(payload); err != nil {
		writeJSON(response, http.StatusUnprocessableEntity, models.MessageResponse{Message: "Invalid request body"})

		return false
	}

	if err := r.validate.Struct(payload); err != nil {
		writeJSON(response, http.StatusUnprocessableEntity, models.MessageResponse{Message: err.Error()})

		return false
	}

	return true
}

func writeJSON(response http.ResponseWriter, statusCode int, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(statusCode)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error encoding the response: ", zap.Error(err))
	}
}

func writeInternalError(response http.ResponseWriter, err error) {
	logger.Log.Errorln("internal error while handling the request", zap.Error(err))
	response.WriteHeader(http.StatusInternalServerError)
}
