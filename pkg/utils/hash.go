package utils

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares plain password with hashed password.
func CheckPassword(plain, hashed string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}

// IsBcryptHash reports whether stored is a bcrypt hash rather than a legacy plaintext value.
func IsBcryptHash(stored string) bool {
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}

// VerifyPassword checks plain against a stored credential that is either a
// bcrypt hash or a legacy plaintext value. needsRehash is true when a
// plaintext value matched and should be replaced by a hash.
func VerifyPassword(plain, stored string) (ok, needsRehash bool) {
	if stored == "" {
		return false, false
	}
	if IsBcryptHash(stored) {
		return CheckPassword(plain, stored), false
	}
	ok = subtle.ConstantTimeCompare([]byte(plain), []byte(stored)) == 1
	return ok, ok
}
