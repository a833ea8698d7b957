package utils

import (
	"crypto/rand"  // Secure randomness for credentials
	"encoding/hex" // Hex encoding of random bytes
	"strings"      // Upper-casing referral codes
)

const (
	// APIKeyPrefix marks portal API keys so they are recognizable in logs and headers
	APIKeyPrefix      = "cak_"
	apiKeySecretBytes = 24
	referralCodeBytes = 4
)

// NewAPIKey returns a fresh unguessable API key
func NewAPIKey() (string, error) {
	secret, err := randomHex(apiKeySecretBytes)
	if err != nil {
		return "", err
	}
	return APIKeyPrefix + secret, nil
}

// IsAPIKey reports whether raw has the shape of a portal API key
func IsAPIKey(raw string) bool {
	return strings.HasPrefix(raw, APIKeyPrefix) && len(raw) == len(APIKeyPrefix)+2*apiKeySecretBytes
}

// NewReferralCode returns a short shareable referral code
func NewReferralCode() (string, error) {
	code, err := randomHex(referralCodeBytes)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(code), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
