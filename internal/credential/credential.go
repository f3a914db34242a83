// Package credential derives and verifies password hashes.
//
// Blobs are stored as hex(salt) || hex(key): a 16-byte random salt followed
// by a 32-byte PBKDF2-HMAC-SHA256 key at 100k iterations. The iteration
// count is the brute-force deterrent; keep it in sync with stored data.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 16
	keyLength  = 32
	iterations = 100_000

	// hex characters occupied by the salt prefix of a blob
	saltHexLength = saltLength * 2
)

// Hash derives a storable blob from a plaintext password.
func Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("credential: password is empty")
	}
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("credential: generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)
	key := pbkdf2.Key([]byte(password), []byte(saltHex), iterations, keyLength, sha256.New)
	return saltHex + hex.EncodeToString(key), nil
}

// Verify reports whether password matches the stored blob. It fails closed:
// an empty, truncated or otherwise malformed blob is simply a non-match,
// never an error.
func Verify(password, blob string) bool {
	if password == "" || len(blob) <= saltHexLength {
		return false
	}
	saltHex := blob[:saltHexLength]
	storedHex := blob[saltHexLength:]
	if _, err := hex.DecodeString(saltHex); err != nil {
		return false
	}
	stored, err := hex.DecodeString(storedHex)
	if err != nil {
		return false
	}
	derived := pbkdf2.Key([]byte(password), []byte(saltHex), iterations, len(stored), sha256.New)
	return subtle.ConstantTimeCompare(derived, stored) == 1
}
