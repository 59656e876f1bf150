package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"pdfworks/api/dto"
)

type mockAuthService struct {
	registerFunc func(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	loginFunc    func(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
}

func (m *mockAuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	return m.registerFunc(ctx, req)
}

func (m *mockAuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	return m.loginFunc(ctx, req)
}

func TestRegister_Created(t *testing.T) {
	service := &mockAuthService{
		registerFunc: func(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
			return &dto.TokenResponse{AccessToken: "token", TokenType: "Bearer"}, nil
		},
	}
	handler := NewAuthHandler(service, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"username":"alice","password":"hunter2hunter2"}`))
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected 201, got %d", rec.Code)
	}
}

func TestRegister_Conflict(t *testing.T) {
	service := &mockAuthService{
		registerFunc: func(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
			return nil, dto.ErrUsernameTaken
		},
	}
	handler := NewAuthHandler(service, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"username":"alice","password":"hunter2hunter2"}`))
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", rec.Code)
	}
}

func TestRegister_InvalidBody(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{}, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestLogin_OK(t *testing.T) {
	service := &mockAuthService{
		loginFunc: func(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
			return &dto.TokenResponse{AccessToken: "token", TokenType: "Bearer"}, nil
		},
	}
	handler := NewAuthHandler(service, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"alice","password":"hunter2hunter2"}`))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	service := &mockAuthService{
		loginFunc: func(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
			return nil, dto.ErrInvalidCredentials
		},
	}
	handler := NewAuthHandler(service, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"alice","password":"wrong"}`))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}
