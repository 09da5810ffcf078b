package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"expensetracker/internal/auth"
	"expensetracker/internal/db"
	"expensetracker/internal/errors"
	"expensetracker/internal/handler"
	"expensetracker/internal/model"
	"expensetracker/internal/repository"
	"expensetracker/internal/service"
)

type APITestSuite struct {
	suite.Suite
	gormDB *gorm.DB
	e      *echo.Echo
}

func (s *APITestSuite) SetupTest() {
	gormDB, err := db.NewSQLite(db.MemoryDSN)
	require.NoError(s.T(), err)
	require.NoError(s.T(), db.AutoMigrate(gormDB))
	s.gormDB = gormDB

	userRepo := repository.NewUserRepository(gormDB)
	expenseRepo := repository.NewExpenseRepository(gormDB)
	jwtService := auth.NewJWTService("router-test-secret", "expense-tracker", time.Hour)
	authService := service.NewAuthService(userRepo, jwtService, bcrypt.MinCost, nil)
	expenseService := service.NewExpenseService(expenseRepo, userRepo, nil, nil)

	s.e = echo.New()
	Register(s.e, nil, authService, handler.NewAuthHandler(authService), handler.NewExpenseHandler(expenseService))
}

func (s *APITestSuite) TearDownTest() {
	if sqlDB, err := s.gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (s *APITestSuite) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		payload, err := json.Marshal(b)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *APITestSuite) decode(rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *APITestSuite) errorCode(rec *httptest.ResponseRecorder) string {
	var body errors.ErrorResponse
	s.decode(rec, &body)
	return body.Code
}

func (s *APITestSuite) register(username, email, password string) handler.AuthResponse {
	rec := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	var resp handler.AuthResponse
	s.decode(rec, &resp)
	return resp
}

func (s *APITestSuite) createExpense(token string, body map[string]interface{}) model.Expense {
	rec := s.do(http.MethodPost, "/api/expenses", token, body)
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	var expense model.Expense
	s.decode(rec, &expense)
	return expense
}

func (s *APITestSuite) TestExpenseLifecycle() {
	alice := s.register("alice", "alice@x.com", "pw1")
	require.NotEmpty(s.T(), alice.Token)

	created := s.createExpense(alice.Token, map[string]interface{}{
		"description": "Coffee",
		"amount":      3.50,
		"category":    "Food",
	})
	assert.Equal(s.T(), alice.User.ID, created.OwnerID)
	assert.True(s.T(), decimal.RequireFromString("3.50").Equal(created.Amount))
	assert.WithinDuration(s.T(), time.Now(), created.Date, time.Minute)

	rec := s.do(http.MethodGet, "/api/expenses", alice.Token, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var list []model.Expense
	s.decode(rec, &list)
	require.Len(s.T(), list, 1)
	assert.Equal(s.T(), created.ID, list[0].ID)

	rec = s.do(http.MethodDelete, "/api/expenses/"+created.ID.String(), alice.Token, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/expenses/"+created.ID.String(), alice.Token, nil)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
	assert.Equal(s.T(), "NOT_FOUND_OR_UNAUTHORIZED", s.errorCode(rec))

	rec = s.do(http.MethodGet, "/api/expenses", alice.Token, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.JSONEq(s.T(), "[]", rec.Body.String())
}

func (s *APITestSuite) TestForeignRecordLooksMissing() {
	alice := s.register("alice", "alice@x.com", "pw1")
	bob := s.register("bob", "bob@x.com", "pw2")
	expense := s.createExpense(alice.Token, map[string]interface{}{
		"description": "Rent",
		"amount":      "800",
		"category":    "Utilities",
	})
	path := "/api/expenses/" + expense.ID.String()

	foreignGet := s.do(http.MethodGet, path, bob.Token, nil)
	missingGet := s.do(http.MethodGet, "/api/expenses/"+uuid.NewString(), bob.Token, nil)
	assert.Equal(s.T(), http.StatusNotFound, foreignGet.Code)
	assert.Equal(s.T(), missingGet.Code, foreignGet.Code)
	assert.Equal(s.T(), missingGet.Body.String(), foreignGet.Body.String())

	rec := s.do(http.MethodPatch, path, bob.Token, map[string]interface{}{"description": "mine now"})
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, path, bob.Token, nil)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/expenses", bob.Token, nil)
	assert.JSONEq(s.T(), "[]", rec.Body.String())

	rec = s.do(http.MethodGet, path, alice.Token, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var unchanged model.Expense
	s.decode(rec, &unchanged)
	assert.Equal(s.T(), "Rent", unchanged.Description)
	assert.Equal(s.T(), alice.User.ID, unchanged.OwnerID)
}

func (s *APITestSuite) TestMalformedIDIsNotFound() {
	alice := s.register("alice", "alice@x.com", "pw1")

	rec := s.do(http.MethodGet, "/api/expenses/not-a-uuid", alice.Token, nil)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
	assert.Equal(s.T(), "NOT_FOUND_OR_UNAUTHORIZED", s.errorCode(rec))
}

func (s *APITestSuite) TestBearerRequired() {
	alice := s.register("alice", "alice@x.com", "pw1")
	expired, _, err := auth.NewJWTService("router-test-secret", "expense-tracker", -time.Minute).GenerateToken(alice.User.ID)
	require.NoError(s.T(), err)
	forged, _, err := auth.NewJWTService("other-secret", "expense-tracker", time.Hour).GenerateToken(alice.User.ID)
	require.NoError(s.T(), err)

	for name, token := range map[string]string{
		"missing": "",
		"garbage": "garbage",
		"expired": expired,
		"forged":  forged,
	} {
		rec := s.do(http.MethodGet, "/api/expenses", token, nil)
		assert.Equal(s.T(), http.StatusUnauthorized, rec.Code, name)
		assert.Equal(s.T(), "UNAUTHENTICATED", s.errorCode(rec), name)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Basic "+alice.Token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(s.T(), http.StatusUnauthorized, rec.Code)
}

func (s *APITestSuite) TestMe() {
	alice := s.register("alice", "Alice@X.com", "pw1")

	rec := s.do(http.MethodGet, "/api/auth/me", alice.Token, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var user model.User
	s.decode(rec, &user)
	assert.Equal(s.T(), alice.User.ID, user.ID)
	assert.Equal(s.T(), "alice@x.com", user.Email)
	assert.NotContains(s.T(), rec.Body.String(), "password")
}

func (s *APITestSuite) TestRegisterAndLogin() {
	alice := s.register("alice", "alice@x.com", "pw1")

	rec := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice2",
		"email":    "alice@x.com",
		"password": "pw2",
	})
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(s.T(), "DUPLICATE_IDENTITY", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "carol",
		"email":    "carol@x.com",
	})
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(s.T(), "VALIDATION_ERROR", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@x.com", "password": "pw1"})
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var login handler.AuthResponse
	s.decode(rec, &login)
	assert.Equal(s.T(), alice.User.ID, login.User.ID)

	rec = s.do(http.MethodGet, "/api/auth/me", login.Token, nil)
	assert.Equal(s.T(), http.StatusOK, rec.Code)

	wrongPassword := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@x.com", "password": "nope"})
	unknownEmail := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ghost@x.com", "password": "pw1"})
	assert.Equal(s.T(), http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(s.T(), wrongPassword.Code, unknownEmail.Code)
	assert.Equal(s.T(), wrongPassword.Body.String(), unknownEmail.Body.String())
	assert.Equal(s.T(), "INVALID_CREDENTIALS", s.errorCode(wrongPassword))
}

func (s *APITestSuite) TestRegisterRejectsPasswordOverBcryptLimit() {
	rec := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "dora",
		"email":    "dora@x.com",
		"password": strings.Repeat("é", 40),
	})
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(s.T(), "VALIDATION_ERROR", s.errorCode(rec))

	rec = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "dora@x.com", "password": strings.Repeat("é", 40)})
	assert.Equal(s.T(), http.StatusUnauthorized, rec.Code)
}

func (s *APITestSuite) TestCreateValidation() {
	alice := s.register("alice", "alice@x.com", "pw1")

	tests := []struct {
		name string
		body interface{}
	}{
		{"zero amount", map[string]interface{}{"description": "x", "amount": 0, "category": "Food"}},
		{"negative amount", map[string]interface{}{"description": "x", "amount": -1, "category": "Food"}},
		{"missing amount", map[string]interface{}{"description": "x", "category": "Food"}},
		{"unknown category", map[string]interface{}{"description": "x", "amount": 1, "category": "Gambling"}},
		{"blank description", map[string]interface{}{"description": "  ", "amount": 1, "category": "Food"}},
		{"bad date", map[string]interface{}{"description": "x", "amount": 1, "category": "Food", "date": "yesterday"}},
		{"not json", `{"description":`},
	}

	for _, tt := range tests {
		rec := s.do(http.MethodPost, "/api/expenses", alice.Token, tt.body)
		assert.Equal(s.T(), http.StatusBadRequest, rec.Code, tt.name)
		assert.Equal(s.T(), "VALIDATION_ERROR", s.errorCode(rec), tt.name)
	}

	rec := s.do(http.MethodGet, "/api/expenses", alice.Token, nil)
	assert.JSONEq(s.T(), "[]", rec.Body.String())
}

func (s *APITestSuite) TestUpdate() {
	alice := s.register("alice", "alice@x.com", "pw1")
	expense := s.createExpense(alice.Token, map[string]interface{}{
		"description": "Coffee",
		"amount":      3.50,
		"category":    "Food",
		"date":        "2024-05-01",
	})
	path := "/api/expenses/" + expense.ID.String()

	rec := s.do(http.MethodPatch, path, alice.Token, map[string]interface{}{"amount": "4.25"})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	var patched model.Expense
	s.decode(rec, &patched)
	assert.Equal(s.T(), "Coffee", patched.Description)
	assert.Equal(s.T(), model.CategoryFood, patched.Category)
	assert.Equal(s.T(), "4.25", patched.Amount.StringFixed(2))
	assert.Equal(s.T(), "2024-05-01", patched.Date.Format("2006-01-02"))

	rec = s.do(http.MethodPut, path, alice.Token, map[string]interface{}{
		"description": "Train",
		"category":    "Transport",
		"date":        "2024-05-03T08:00:00Z",
	})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPatch, path, alice.Token, map[string]interface{}{"amount": 0})
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, path, alice.Token, map[string]interface{}{"category": "Gambling"})
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, path, alice.Token, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var stored model.Expense
	s.decode(rec, &stored)
	assert.Equal(s.T(), "Train", stored.Description)
	assert.Equal(s.T(), model.CategoryTransport, stored.Category)
	assert.Equal(s.T(), "4.25", stored.Amount.StringFixed(2))
	assert.Equal(s.T(), alice.User.ID, stored.OwnerID)
}

func (s *APITestSuite) TestListOrderFilterAndSummary() {
	alice := s.register("alice", "alice@x.com", "pw1")
	s.createExpense(alice.Token, map[string]interface{}{"description": "old", "amount": 10, "category": "Food", "date": "2024-01-01"})
	s.createExpense(alice.Token, map[string]interface{}{"description": "new", "amount": 2.5, "category": "Transport", "date": "2024-03-01"})
	s.createExpense(alice.Token, map[string]interface{}{"description": "mid", "amount": 1.25, "category": "Food", "date": "2024-02-01"})

	rec := s.do(http.MethodGet, "/api/expenses", alice.Token, nil)
	var list []model.Expense
	s.decode(rec, &list)
	require.Len(s.T(), list, 3)
	assert.Equal(s.T(), "new", list[0].Description)
	assert.Equal(s.T(), "mid", list[1].Description)
	assert.Equal(s.T(), "old", list[2].Description)

	rec = s.do(http.MethodGet, "/api/expenses?category=Food", alice.Token, nil)
	s.decode(rec, &list)
	assert.Len(s.T(), list, 2)

	rec = s.do(http.MethodGet, "/api/expenses?category=Bogus", alice.Token, nil)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/expenses/summary", alice.Token, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var summary model.Summary
	s.decode(rec, &summary)
	assert.Equal(s.T(), 3, summary.Count)
	assert.Equal(s.T(), "13.75", summary.Total.StringFixed(2))
	assert.Equal(s.T(), "11.25", summary.ByCategory[model.CategoryFood].StringFixed(2))
}

func (s *APITestSuite) TestPublicRoutes() {
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), "ok", rec.Body.String())

	rec = s.do(http.MethodGet, "/api/categories", "", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var categories []string
	s.decode(rec, &categories)
	assert.Equal(s.T(), []string{"Food", "Transport", "Utilities", "Entertainment", "Shopping", "Health", "Education", "Salary", "Other"}, categories)
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
