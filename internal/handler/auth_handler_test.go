package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/report-card-api/internal/middleware"
	"github.com/noah-isme/report-card-api/internal/models"
	appErrors "github.com/noah-isme/report-card-api/pkg/errors"
)

type fakeAuthSrv struct {
	lastLogin models.LoginRequest
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.lastLogin = req
	if req.Password != "secret123" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "token", TokenType: "Bearer", ExpiresIn: 3600, IssuedAt: time.Now()}, nil
}

func (f *fakeAuthSrv) Me(_ context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID, Email: "admin@example.com", FullName: "Admin"}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)

	c, rec := newContext(http.MethodPost, "/auth/login", `{"email":"admin@example.com","password":"secret123"}`)
	handler.Login(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@example.com", srv.lastLogin.Email)
	assert.Contains(t, rec.Body.String(), `"access_token":"token"`)
}

func TestAuthHandlerLoginWrongPassword(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{})

	c, rec := newContext(http.MethodPost, "/auth/login", `{"email":"admin@example.com","password":"nope"}`)
	handler.Login(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, decodeError(t, rec).Code)
}

func TestAuthHandlerLoginMalformed(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{})

	c, rec := newContext(http.MethodPost, "/auth/login", `[]`)
	handler.Login(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid login payload", decodeError(t, rec).Message)
}

func TestAuthHandlerMe(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{})

	c, rec := newContext(http.MethodGet, "/auth/me", nil)
	handler.Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newContext(http.MethodGet, "/auth/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1"})
	handler.Me(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"user-1"`)
}
