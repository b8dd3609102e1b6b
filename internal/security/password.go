package security

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor for stored credentials.
const PasswordCost = 12

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// helper that compares a bcrypt hash with a plaintext password.

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// PasswordMatches reports whether plain matches hash. A malformed hash is a
// mismatch, not an error.
func PasswordMatches(plain, hash string) bool {
	return CheckPassword(hash, plain) == nil
}

var dummyHash = sync.OnceValue(func() string {
	hash, err := HashPassword("userhub-no-such-account")
	if err != nil {
		panic("security: dummy hash: " + err.Error())
	}
	return hash
})

// DummyHash is a valid hash at PasswordCost that no real password matches.
// Comparing against it when no account exists keeps login latency the same
// for unknown emails and wrong passwords.
func DummyHash() string {
	return dummyHash()
}
