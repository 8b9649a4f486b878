package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when no stored hash exists, so an unknown
// username costs the same as a wrong password.
var dummyHash = mustHash("not-a-real-password")

func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hashed. Any failure, including a
// malformed or empty hash, is reported as false.
func Verify(plain, hashed string) bool {
	if hashed == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

func mustHash(plain string) []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}
