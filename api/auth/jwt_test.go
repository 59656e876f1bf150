package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	userID := uuid.New().String()

	token, err := tm.Generate(userID)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	got, err := tm.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got != userID {
		t.Errorf("Expected subject %s, got %s", userID, got)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	token, err := tm.Generate(uuid.New().String())
	if err != nil {
		t.Fatal(err)
	}

	other := NewTokenManager("different-secret", time.Hour)
	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestValidate_Expired(t *testing.T) {
	tm := NewTokenManager("test-secret", -time.Minute)
	token, err := tm.Generate(uuid.New().String())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := tm.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestValidate_Garbage(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	if _, err := tm.Validate("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestValidate_NonUUIDSubject(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	token, err := tm.Generate("admin")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := tm.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for non-uuid subject, got %v", err)
	}
}
