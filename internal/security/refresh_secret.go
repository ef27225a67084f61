package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// refreshSecretBytes is the entropy of a refresh secret: 32 bytes = 256 bits.
const refreshSecretBytes = 32

// NewRefreshSecret returns a cryptographically random, URL-safe refresh
// secret. The server stores only a hash (see HashRefreshSecret); the plain
// secret goes to the client exactly once.
func NewRefreshSecret() (string, error) {
	b := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashRefreshSecret returns a SHA-256 hash of the refresh secret, hex-encoded.
// Used for storing and looking up refresh tokens without storing the raw secret.
func HashRefreshSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// RefreshSecretHashEqual performs constant-time comparison of the provided
// secret's hash with the stored hash. Returns true only if they match.
func RefreshSecretHashEqual(providedSecret, storedHash string) bool {
	providedHash := HashRefreshSecret(providedSecret)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
