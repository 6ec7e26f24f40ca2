package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"":           RoleLearner,
		"learner":    RoleLearner,
		"instructor": RoleInstructor,
		" admin ":    RoleAdmin,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil || got != want {
			t.Fatalf("ParseRole(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	if _, err := ParseRole("root"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown role, got %v", err)
	}
}

func TestNormalizeUsername(t *testing.T) {
	got, err := NormalizeUsername("  testuser  ")
	if err != nil || got != "testuser" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}

	for _, bad := range []string{"ab", "   ab   ", strings.Repeat("x", 31)} {
		if _, err := NormalizeUsername(bad); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %q, got %v", bad, err)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  TestUser@Example.COM ")
	if err != nil || got != "testuser@example.com" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}

	for _, bad := range []string{"not-an-email", "a@b", "@example.com", ""} {
		if _, err := NormalizeEmail(bad); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %q, got %v", bad, err)
		}
	}
}

func TestCheckPassword(t *testing.T) {
	if err := CheckPassword("123456"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckPassword(strings.Repeat("a", PasswordMaxBytes)); err != nil {
		t.Fatalf("72-byte password rejected: %v", err)
	}
	for _, pw := range []string{
		"12345",
		strings.Repeat("a", PasswordMaxBytes+1),
		// 40 characters, 80 bytes.
		strings.Repeat("é", 40),
	} {
		if err := CheckPassword(pw); !errors.Is(err, ErrValidation) {
			t.Fatalf("password of %d bytes: expected ErrValidation, got %v", len(pw), err)
		}
	}
}

func TestAccountPublic_OmitsPassword(t *testing.T) {
	now := time.Now().UTC()
	a := &Account{
		ID:           "65f0c0ffee0000000000abcd",
		Username:     "testuser",
		Email:        "testuser@example.com",
		PasswordHash: "$2a$10$secret",
		Role:         RoleLearner,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	b, err := json.Marshal(a.Public())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if out["_id"] != a.ID {
		t.Fatalf("expected _id %s, got %v", a.ID, out["_id"])
	}
	for _, k := range []string{"password", "passwordHash", "PasswordHash"} {
		if _, ok := out[k]; ok {
			t.Fatalf("public account leaked %s", k)
		}
	}
	if strings.Contains(string(b), "$2a$10$secret") {
		t.Fatalf("hash leaked into JSON: %s", b)
	}
}

func TestTokenErrors(t *testing.T) {
	for _, err := range []error{ErrTokenMissing, ErrTokenInvalid, ErrTokenExpired} {
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%v should match ErrUnauthorized", err)
		}
	}
	if errors.Is(ErrTokenExpired, ErrTokenInvalid) {
		t.Fatalf("expired and invalid must be distinguishable")
	}
}
