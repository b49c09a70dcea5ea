package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vikasavnish/mfbroker/internal/db/dbtest"
	"github.com/vikasavnish/mfbroker/internal/logging"
	"github.com/vikasavnish/mfbroker/internal/middleware"
	"github.com/vikasavnish/mfbroker/internal/models"
	"github.com/vikasavnish/mfbroker/internal/services"
	"github.com/vikasavnish/mfbroker/internal/tasks"
)

type stubFunds struct {
	records []models.SchemeRecord
	err     error
}

func (s *stubFunds) FetchAllOpenEnded(ctx context.Context, filters map[string]string) ([]models.SchemeRecord, error) {
	return s.records, s.err
}

func (s *stubFunds) FetchByFamily(ctx context.Context, family string) ([]models.SchemeRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.SchemeRecord, 0)
	for _, r := range s.records {
		if r.MutualFundFamily == family {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubFunds) FetchSchemeByCode(ctx context.Context, code int) (*models.SchemeRecord, error) {
	return nil, s.err
}

type stubRunner struct {
	result tasks.Result
	err    error
}

func (s *stubRunner) Run(ctx context.Context) (tasks.Result, error) {
	return s.result, s.err
}

type testServer struct {
	router      *mux.Router
	tokens      services.TokenService
	users       services.UserService
	investments services.InvestmentService
	funds       *stubFunds
	runner      *stubRunner
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.Open(t)
	logger := logging.Discard()

	tokens, err := services.NewTokenService([]byte("handler-secret"), "HS256")
	require.NoError(t, err)
	users := services.NewUserService(db)
	investments := services.NewInvestmentService(db)
	auth := services.NewAuthService(users, services.NewPasswordHasher(bcrypt.MinCost), tokens, time.Hour, 24*time.Hour)
	funds := &stubFunds{}
	runner := &stubRunner{result: tasks.Result{Message: tasks.MessageRefreshSucceeded}}

	router := mux.NewRouter()
	authHandler := NewAuthHandler(auth, users, logger)
	authPublic := router.PathPrefix("/mfb/auth").Subrouter()
	authHandler.RegisterPublicRoutes(authPublic)
	authAccess := router.PathPrefix("/mfb/auth").Subrouter()
	authAccess.Use(middleware.Guard(tokens, middleware.AccessOnly))
	authHandler.RegisterRoutes(authAccess)
	authRefresh := router.PathPrefix("/mfb/auth").Subrouter()
	authRefresh.Use(middleware.Guard(tokens, middleware.RefreshOnly))
	authHandler.RegisterRefreshRoutes(authRefresh)

	investmentRouter := router.PathPrefix("/mfb/investment").Subrouter()
	investmentRouter.Use(middleware.Guard(tokens, middleware.AccessOnly))
	NewInvestmentHandler(investments, logger).RegisterRoutes(investmentRouter)
	NewFundHandler(services.NewFundService(funds), logger).RegisterRoutes(investmentRouter)
	NewRefreshHandler(runner, logger).RegisterRoutes(investmentRouter)

	return &testServer{
		router:      router,
		tokens:      tokens,
		users:       users,
		investments: investments,
		funds:       funds,
		runner:      runner,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// signupAndLogin creates a user and returns the user id and access token
func (s *testServer) signupAndLogin(t *testing.T, email string) (string, string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/mfb/auth/signup", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/mfb/auth/login", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	token, ok := middleware.BearerToken(rec.Header().Get("Authorization"))
	require.True(t, ok)
	claims, err := s.tokens.Validate(token)
	require.NoError(t, err)
	return claims.User.UserID, token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body models.ErrorResponse
	decode(t, rec, &body)
	return body.Detail
}
