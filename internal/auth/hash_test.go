// ABOUTME: Tests for argon2id password hashing and verification.
package auth_test

import (
	"strings"
	"testing"

	"github.com/fixbay/workshop-ops/internal/auth"
)

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()
	hash, err := auth.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Errorf("hash = %q, want PHC argon2id prefix", hash)
	}

	ok, err := auth.VerifyPassword("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Error("correct password rejected")
	}

	ok, err = auth.VerifyPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword (wrong): %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}
}

func TestHashesAreSalted(t *testing.T) {
	t.Parallel()
	h1, err := auth.HashPassword("same input")
	if err != nil {
		t.Fatalf("hash 1: %v", err)
	}
	h2, err := auth.HashPassword("same input")
	if err != nil {
		t.Fatalf("hash 2: %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password are identical — salt missing")
	}
}

func TestVerifyRejectsGarbageHash(t *testing.T) {
	t.Parallel()
	if _, err := auth.VerifyPassword("anything", "not-a-phc-string"); err == nil {
		t.Error("expected error for malformed hash, got nil")
	}
}
