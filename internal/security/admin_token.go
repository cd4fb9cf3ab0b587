package security

import "golang.org/x/crypto/bcrypt"

// bcryptCost defines the bcrypt work factor for admin token hashes.
const bcryptCost = 12

// HashAdminToken hashes a plaintext admin token for storage in config.
func HashAdminToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckAdminToken compares a stored bcrypt hash with a presented token.
func CheckAdminToken(hash, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
