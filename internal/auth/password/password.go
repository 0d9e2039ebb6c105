// Package password wraps credential hashing for user accounts.
package password

import "golang.org/x/crypto/bcrypt"

const hashCost = bcrypt.DefaultCost

// Hash returns the bcrypt hash stored for a user password.
func Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether password matches the stored hash.
func Verify(password, encoded string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
}
