package ledger

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier seals secrets (passwords, PINs) for storage and checks candidates
// against the sealed form. Callers never compare secrets directly.
type CredentialVerifier interface {
	Seal(secret string) (string, error)
	Verify(sealed, candidate string) bool
}

// PlainVerifier stores secrets as given and compares them for equality. This keeps the
// console bank's verify-by-equality contract; use BcryptVerifier for anything real.
type PlainVerifier struct{}

func (PlainVerifier) Seal(secret string) (string, error) {
	return secret, nil
}

func (PlainVerifier) Verify(sealed, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(sealed), []byte(candidate)) == 1
}

// BcryptVerifier stores bcrypt hashes. Cost 0 means bcrypt.DefaultCost.
type BcryptVerifier struct {
	Cost int
}

func (v BcryptVerifier) Seal(secret string) (string, error) {
	cost := v.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(hash), nil
}

func (BcryptVerifier) Verify(sealed, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(sealed), []byte(candidate)) == nil
}

// StaffCredential is one entry of the fixed staff list. Password is in sealed form.
type StaffCredential struct {
	Username string
	Password string
}
