package domain

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// PINHashLength is the length of a digest produced by HashPIN.
const PINHashLength = sha256.Size * 2

// HashPIN returns the lowercase hex SHA-256 digest of secret.
func HashPIN(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// VerifyPIN reports whether secret hashes to digest.
func VerifyPIN(secret, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(HashPIN(secret)), []byte(digest)) == 1
}

func isPINHash(digest string) bool {
	if len(digest) != PINHashLength {
		return false
	}
	_, err := hex.DecodeString(digest)
	return err == nil
}
