package handler

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/internal/auth"
	"canvas-backend/internal/directory"
	"canvas-backend/internal/model"
)

// fakeUserStore mirrors directory.Service's sentinel semantics: a username or
// email collision surfaces as ErrDuplicateUser.
type fakeUserStore struct {
	users map[string]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*model.User)}
}

func (s *fakeUserStore) CreateUser(username, email, passwordHash string) (*model.User, error) {
	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return nil, directory.ErrDuplicateUser
		}
	}
	u := &model.User{
		ID:           int64(len(s.users) + 1),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}
	s.users[username] = u
	return u, nil
}

func (s *fakeUserStore) FindUserByUsername(username string) (*model.User, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	return u, nil
}

func newAuthApp(store userStore) *fiber.App {
	app := fiber.New()
	h := NewAuthHandler(store, auth.NewJWTManager("test-secret", time.Hour), time.Hour, false)
	app.Post("/auth/register", h.Register)
	app.Post("/auth/login", h.Login)
	return app
}

func register(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestRegisterDuplicateUserReturnsConflict(t *testing.T) {
	store := newFakeUserStore()
	app := newAuthApp(store)

	body := `{"username":"alice","email":"alice@example.com","password":"correct horse"}`
	assert.Equal(t, fiber.StatusCreated, register(t, app, body))

	// Same username again: the duplicate sentinel must map to 409, not 500.
	assert.Equal(t, fiber.StatusConflict, register(t, app, body))
	assert.Len(t, store.users, 1)
}

func TestRegisterReturnsToken(t *testing.T) {
	app := newAuthApp(newFakeUserStore())

	req := httptest.NewRequest("POST", "/auth/register",
		strings.NewReader(`{"username":"bob","email":"bob@example.com","password":"longenough"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed AuthResponse
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Equal(t, "bob", parsed.User.Username)
	assert.NotEmpty(t, parsed.AccessToken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := newFakeUserStore()
	app := newAuthApp(store)
	require.Equal(t, fiber.StatusCreated, register(t, app,
		`{"username":"alice","email":"alice@example.com","password":"correct horse"}`))

	for _, body := range []string{
		`{"username":"alice","password":"wrong password"}`,
		`{"username":"nobody","password":"correct horse"}`,
	} {
		req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	}
}
