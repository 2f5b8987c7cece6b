package application

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

var testArgon2idParams = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	t.Run("accepts argon2id hashes", func(t *testing.T) {
		t.Parallel()

		hash, err := CreatePasswordHash("correct horse", testArgon2idParams)
		if err != nil {
			t.Fatalf("CreatePasswordHash failed: %v", err)
		}
		if err := VerifyPassword(hash, "correct horse"); err != nil {
			t.Fatalf("expected password to verify, got %v", err)
		}
		if err := VerifyPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("accepts legacy bcrypt hashes", func(t *testing.T) {
		t.Parallel()

		hash, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("bcrypt failed: %v", err)
		}
		if err := VerifyPassword(string(hash), "legacy-pass"); err != nil {
			t.Fatalf("expected bcrypt password to verify, got %v", err)
		}
		if err := VerifyPassword(string(hash), "nope"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("rejects malformed encodings", func(t *testing.T) {
		t.Parallel()

		for _, hash := range []string{"", "plain", "$argon2id$v=19$m=1,t=1,p=1$!!$!!", "$argon2i$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"} {
			if err := VerifyPassword(hash, "secret"); !errors.Is(err, ErrInvalidPasswordHash) {
				t.Fatalf("VerifyPassword(%q) expected ErrInvalidPasswordHash, got %v", hash, err)
			}
		}
	})

	t.Run("rejects foreign argon2 versions", func(t *testing.T) {
		t.Parallel()

		if err := VerifyPassword("$argon2id$v=16$m=1024,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g", "secret"); !errors.Is(err, ErrIncompatiblePasswordVersion) {
			t.Fatalf("expected ErrIncompatiblePasswordVersion, got %v", err)
		}
	})
}
