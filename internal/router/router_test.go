package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/linkshort/internal/accounts"
	"github.com/patric-chuzhbe/linkshort/internal/auth"
	"github.com/patric-chuzhbe/linkshort/internal/db/memorystorage"
	"github.com/patric-chuzhbe/linkshort/internal/logger"
	"github.com/patric-chuzhbe/linkshort/internal/mockstorage"
	"github.com/patric-chuzhbe/linkshort/internal/models"
	"github.com/patric-chuzhbe/linkshort/internal/shortener"
	"github.com/patric-chuzhbe/linkshort/internal/tokens"
)

const (
	testBaseURL   = "http://localhost:8080"
	testSecretKey = "test-secret-key"
)

type mailRecorder struct {
	mu   sync.Mutex
	jobs []*models.EmailJob
}

func (r *mailRecorder) EnqueueJob(job *models.EmailJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
}

type testEnvironment struct {
	server *httptest.Server
	db     *memorystorage.MemoryStorage
	mail   *mailRecorder
}

func newTestEnvironment(t *testing.T) *testEnvironment {
	t.Helper()

	require.NoError(t, logger.Init("debug"))

	db, err := memorystorage.New()
	require.NoError(t, err)

	mail := &mailRecorder{}
	secretKey := []byte(testSecretKey)
	authenticator := auth.New(db, secretKey, time.Hour)
	theAccounts := accounts.New(
		db,
		tokens.New(db, secretKey, 10*time.Minute),
		authenticator,
		mail,
		testBaseURL,
	)
	theShortener := shortener.New(db, testBaseURL)

	server := httptest.NewServer(New(theAccounts, theShortener, authenticator, db))
	t.Cleanup(server.Close)

	return &testEnvironment{
		server: server,
		db:     db,
		mail:   mail,
	}
}

func (e *testEnvironment) post(t *testing.T, path string, body interface{}) *resty.Response {
	t.Helper()

	request := resty.New().R().SetHeader("Content-Type", "application/json")
	if body != nil {
		request.SetBody(body)
	}

	response, err := request.Post(e.server.URL + path)
	require.NoError(t, err, "error making HTTP request")

	return response
}

func (e *testEnvironment) signupAndActivate(t *testing.T, email, password string) string {
	t.Helper()

	response := e.post(t, "/signup", models.SignupRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, response.StatusCode())

	signupResponse := models.SignupResponse{}
	require.NoError(t, json.Unmarshal(response.Body(), &signupResponse))

	response = e.post(t, "/activate-account/"+signupResponse.UserID, nil)
	require.Equal(t, http.StatusOK, response.StatusCode())

	return signupResponse.UserID
}

func (e *testEnvironment) login(t *testing.T, email, password string) string {
	t.Helper()

	response := e.post(t, "/login", models.LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, response.StatusCode())

	loginResponse := models.LoginResponse{}
	require.NoError(t, json.Unmarshal(response.Body(), &loginResponse))
	require.NotEmpty(t, loginResponse.Token)

	return loginResponse.Token
}

func TestPostSignup(t *testing.T) {
	env := newTestEnvironment(t)

	tests := []struct {
		name               string
		body               interface{}
		expectedStatusCode int
		expectedMessage    string
	}{
		{
			name:               "positive",
			body:               models.SignupRequest{Email: "someone@example.com", Password: "correct horse"},
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "duplicate email",
			body:               models.SignupRequest{Email: "someone@example.com", Password: "another password"},
			expectedStatusCode: http.StatusForbidden,
			expectedMessage:    "User already exists",
		},
		{
			name:               "invalid email",
			body:               models.SignupRequest{Email: "not-an-email", Password: "correct horse"},
			expectedStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name:               "short password",
			body:               models.SignupRequest{Email: "other@example.com", Password: "short"},
			expectedStatusCode: http.StatusUnprocessableEntity,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			response := env.post(t, "/signup", test.body)

			assert.Equal(t, test.expectedStatusCode, response.StatusCode())
			if test.expectedMessage != "" {
				messageResponse := models.MessageResponse{}
				require.NoError(t, json.Unmarshal(response.Body(), &messageResponse))
				assert.Equal(t, test.expectedMessage, messageResponse.Message)
			}
		})
	}

	env.mail.mu.Lock()
	defer env.mail.mu.Unlock()
	require.Len(t, env.mail.jobs, 1)
	assert.Equal(t, "someone@example.com", env.mail.jobs[0].To)
	assert.Contains(t, env.mail.jobs[0].Body, testBaseURL+"/activate-account/")
}

func TestPostActivateAccountUnknownUser(t *testing.T) {
	env := newTestEnvironment(t)

	response := env.post(t, "/activate-account/no-such-user", nil)
	assert.Equal(t, http.StatusNotFound, response.StatusCode())
}

func TestPostLogin(t *testing.T) {
	env := newTestEnvironment(t)

	response := env.post(t, "/signup", models.SignupRequest{Email: "someone@example.com", Password: "correct horse"})
	require.Equal(t, http.StatusOK, response.StatusCode())

	signupResponse := models.SignupResponse{}
	require.NoError(t, json.Unmarshal(response.Body(), &signupResponse))

	tests := []struct {
		name               string
		activateFirst      bool
		body               models.LoginRequest
		expectedStatusCode int
		expectedMessage    string
	}{
		{
			name:               "unknown email",
			body:               models.LoginRequest{Email: "nobody@example.com", Password: "correct horse"},
			expectedStatusCode: http.StatusUnauthorized,
			expectedMessage:    "Invalid email or password",
		},
		{
			name:               "wrong password",
			body:               models.LoginRequest{Email: "someone@example.com", Password: "wrong password"},
			expectedStatusCode: http.StatusUnauthorized,
			expectedMessage:    "Invalid email or password",
		},
		{
			name:               "not activated",
			body:               models.LoginRequest{Email: "someone@example.com", Password: "correct horse"},
			expectedStatusCode: http.StatusUnauthorized,
			expectedMessage:    "Account not yet Activated, Please activate by using link sent to your mail",
		},
		{
			name:               "positive",
			activateFirst:      true,
			body:               models.LoginRequest{Email: "someone@example.com", Password: "correct horse"},
			expectedStatusCode: http.StatusOK,
			expectedMessage:    "Login Successful",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.activateFirst {
				activateResponse := env.post(t, "/activate-account/"+signupResponse.UserID, nil)
				require.Equal(t, http.StatusOK, activateResponse.StatusCode())
			}

			response := env.post(t, "/login", test.body)

			assert.Equal(t, test.expectedStatusCode, response.StatusCode())

			messageResponse := models.MessageResponse{}
			require.NoError(t, json.Unmarshal(response.Body(), &messageResponse))
			assert.Equal(t, test.expectedMessage, messageResponse.Message)
		})
	}
}

func TestPostEmailAvailability(t *testing.T) {
	env := newTestEnvironment(t)
	env.signupAndActivate(t, "someone@example.com", "correct horse")

	tests := []struct {
		name               string
		path               string
		email              string
		expectedStatusCode int
		expectedMessage    string
	}{
		{
			name:               "email is taken",
			path:               "/email",
			email:              "someone@example.com",
			expectedStatusCode: http.StatusForbidden,
			expectedMessage:    "User already exists",
		},
		{
			name:               "email is available",
			path:               "/email",
			email:              "nobody@example.com",
			expectedStatusCode: http.StatusOK,
			expectedMessage:    "email available",
		},
		{
			name:               "forgot password email exists",
			path:               "/forgotpassword/email",
			email:              "someone@example.com",
			expectedStatusCode: http.StatusOK,
			expectedMessage:    "email exist",
		},
		{
			name:               "forgot password email is unknown",
			path:               "/forgotpassword/email",
			email:              "nobody@example.com",
			expectedStatusCode: http.StatusForbidden,
			expectedMessage:    "email does not exist",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			response := env.post(t, test.path, models.EmailRequest{Email: test.email})

			assert.Equal(t, test.expectedStatusCode, response.StatusCode())

			messageResponse := models.MessageResponse{}
			require.NoError(t, json.Unmarshal(response.Body(), &messageResponse))
			assert.Equal(t, test.expectedMessage, messageResponse.Message)
		})
	}
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnvironment(t)
	userID := env.signupAndActivate(t, "someone@example.com", "correct horse")

	response := env.post(t, "/reset-password", models.EmailRequest{Email: "someone@example.com"})
	require.Equal(t, http.StatusOK, response.StatusCode())

	record, found, err := env.db.FindResetToken(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, found)

	confirmationPath := fmt.Sprintf("/reset-password-confirmation/%s/%s", userID, record.Token)

	response = env.post(t, confirmationPath, models.ResetConfirmRequest{
		Password1: "brand new password",
		Token:     "not-the-issued-token",
	})
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode())

	response = env.post(t, confirmationPath, models.ResetConfirmRequest{
		Password1: "brand new password",
		Token:     record.Token,
	})
	require.Equal(t, http.StatusOK, response.StatusCode())

	messageResponse := models.MessageResponse{}
	require.NoError(t, json.Unmarshal(response.Body(), &messageResponse))
	assert.Equal(t, "Password updated successfully", messageResponse.Message)

	loginResponse := env.post(t, "/login", models.LoginRequest{Email: "someone@example.com", Password: "correct horse"})
	assert.Equal(t, http.StatusUnauthorized, loginResponse.StatusCode())

	env.login(t, "someone@example.com", "brand new password")

	// The token is consumed, repeating the confirmation must fail.
	response = env.post(t, confirmationPath, models.ResetConfirmRequest{
		Password1: "yet another password",
		Token:     record.Token,
	})
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode())
}

func TestPostResetPasswordDoesNotRevealAccounts(t *testing.T) {
	env := newTestEnvironment(t)
	env.signupAndActivate(t, "someone@example.com", "correct horse")

	for _, email := range []string{"someone@example.com", "nobody@example.com"} {
		response := env.post(t, "/reset-password", models.EmailRequest{Email: email})

		assert.Equal(t, http.StatusOK, response.StatusCode())

		messageResponse := models.MessageResponse{}
		require.NoError(t, json.Unmarshal(response.Body(), &messageResponse))
		assert.Equal(t, "Mail sent", messageResponse.Message)
	}
}

func TestPostURLShortenerAndRedirect(t *testing.T) {
	env := newTestEnvironment(t)

	response := env.post(t, "/urlshortener", models.ShortenRequest{URL: "https://ru.wikipedia.org/wiki/Go"})
	require.Equal(t, http.StatusOK, response.StatusCode())

	messageResponse := models.MessageResponse{}
	require.NoError(t, json.Unmarshal(response.Body(), &messageResponse))
	require.Contains(t, messageResponse.Message, testBaseURL+"/")

	code := messageResponse.Message[len(testBaseURL+"/"):]
	require.Len(t, code, 6)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	redirectResponse, err := client.Get(env.server.URL + "/" + code)
	require.NoError(t, err)
	defer redirectResponse.Body.Close()

	assert.Equal(t, http.StatusFound, redirectResponse.StatusCode)
	assert.Equal(t, "https://ru.wikipedia.org/wiki/Go", redirectResponse.Header.Get("Location"))

	record, found, err := env.db.FindShortURLByCode(context.Background(), code)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1), record.ClickCount)
}

func TestGetRedirectToUnknownShortURL(t *testing.T) {
	env := newTestEnvironment(t)

	response, err := resty.New().
		SetRedirectPolicy(resty.NoRedirectPolicy()).
		R().
		Get(env.server.URL + "/NONEXISTENT")
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, response.StatusCode())
}

func TestPostURLShortenerValidation(t *testing.T) {
	env := newTestEnvironment(t)

	response := env.post(t, "/urlshortener", models.ShortenRequest{URL: "not a url"})
	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusCode())
}

func TestGetURLList(t *testing.T) {
	env := newTestEnvironment(t)
	env.signupAndActivate(t, "someone@example.com", "correct horse")
	sessionToken := env.login(t, "someone@example.com", "correct horse")

	t.Run("without a session token", func(t *testing.T) {
		response, err := resty.New().R().Get(env.server.URL + "/urlList")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, response.StatusCode())
	})

	t.Run("empty list", func(t *testing.T) {
		response, err := resty.New().R().
			SetHeader("Authorization", "Bearer "+sessionToken).
			Get(env.server.URL + "/urlList")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, response.StatusCode())
	})

	t.Run("with stored urls", func(t *testing.T) {
		shortenResponse := env.post(t, "/urlshortener", models.ShortenRequest{URL: "https://example.com/page"})
		require.Equal(t, http.StatusOK, shortenResponse.StatusCode())

		response, err := resty.New().R().
			SetHeader("Authorization", "Bearer "+sessionToken).
			Get(env.server.URL + "/urlList")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, response.StatusCode())

		items := []models.URLListItem{}
		require.NoError(t, json.Unmarshal(response.Body(), &items))
		require.Len(t, items, 1)
		assert.Equal(t, "https://example.com/page", items[0].FullURL)
		assert.Equal(t, int64(0), items[0].ClickCount)
	})
}

func TestGetPing(t *testing.T) {
	env := newTestEnvironment(t)

	response, err := resty.New().R().Get(env.server.URL + "/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode())
}

func TestGetPingStorageDown(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	db := &mockstorage.StorageMock{}
	db.On("Ping", mock.Anything).Return(assert.AnError)

	router := chi.NewRouter()
	theRouter := &Router{db: db}
	router.Get("/ping", theRouter.GetPing)

	request := httptest.NewRequest(http.MethodGet, "/ping", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestPostURLShortenerCodeSpaceExhausted(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	db := &mockstorage.StorageMock{}
	db.On("IsCodeExists", mock.Anything, mock.Anything).Return(true, nil)

	theRouter := &Router{
		shortener: shortener.New(db, testBaseURL),
		validate:  validator.New(),
	}

	router := chi.NewRouter()
	router.Post("/urlshortener", theRouter.PostURLShortener)

	body, err := json.Marshal(models.ShortenRequest{URL: "https://example.com/"})
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodPost, "/urlshortener", bytes.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}
