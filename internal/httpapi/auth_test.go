package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"tokosync/backend/internal/domain"
	"tokosync/backend/internal/store/memory"
)

const testSecret = "test-secret-0123456789abcdef0123456789"

func newTestAuth(t *testing.T) (*AuthManager, *memory.Store) {
	t.Helper()
	repo := memory.New()
	ctx := context.Background()
	users := []domain.UserAccount{
		{Username: "admin", Password: "admin-password", Role: "admin", Active: true, CreatedAt: time.Now().UTC()},
		{Username: "operator", Password: "operator-password", Role: "operator", Active: true, CreatedAt: time.Now().UTC()},
		{Username: "ghost", Password: "ghost-password", Role: "operator", Active: false, CreatedAt: time.Now().UTC()},
	}
	for _, u := range users {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.Username, err)
		}
	}
	return NewAuthManager(testSecret, time.Hour, repo), repo
}

func TestLoginAndParseTokenRoundtrip(t *testing.T) {
	auth, _ := newTestAuth(t)

	resp, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "admin-password"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != "admin" || resp.AccessToken == "" {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	auth, _ := newTestAuth(t)

	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "nope"}); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "unknown", Password: "admin-password"}); err == nil {
		t.Fatalf("expected unknown user to fail")
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	auth, _ := newTestAuth(t)

	if _, err := auth.Login(domain.LoginRequest{Username: "ghost", Password: "ghost-password"}); err == nil {
		t.Fatalf("expected inactive account to fail")
	}
}

func TestBootstrapUpgradesPlaintextPasswords(t *testing.T) {
	_, repo := newTestAuth(t)

	users, err := repo.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	for _, u := range users {
		if !strings.HasPrefix(u.Password, "$2") {
			t.Fatalf("stored password for %s is still plaintext", u.Username)
		}
	}
}

func TestParseTokenRejectsTamperedToken(t *testing.T) {
	auth, _ := newTestAuth(t)

	resp, err := auth.Login(domain.LoginRequest{Username: "operator", Password: "operator-password"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	tampered := resp.AccessToken[:len(resp.AccessToken)-2] + "xx"
	if _, err := auth.ParseToken(tampered); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}

	other := NewAuthManager("another-secret-0123456789abcdef012345", time.Hour, nil)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with a different secret to be rejected")
	}
}
