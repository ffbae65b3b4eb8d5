package security

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
)

// PickupCodeLength is the number of decimal digits in a pickup code.
const PickupCodeLength = 6

var pickupCodeSpace = big.NewInt(1_000_000)

// GeneratePickupCode returns a uniformly random, zero padded six digit code.
func GeneratePickupCode() (string, error) {
	return generatePickupCode(rand.Reader)
}

func generatePickupCode(r io.Reader) (string, error) {
	n, err := rand.Int(r, pickupCodeSpace)
	if err != nil {
		return "", fmt.Errorf("generate pickup code: %w", err)
	}
	return fmt.Sprintf("%0*d", PickupCodeLength, n.Int64()), nil
}

// IsPickupCodeFormat reports whether code is exactly six ASCII digits.
func IsPickupCodeFormat(code string) bool {
	if len(code) != PickupCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// PickupCodeMatches compares a submitted code against the stored one in
// constant time. A missing stored code never matches.
func PickupCodeMatches(stored *string, submitted string) bool {
	if stored == nil || !IsPickupCodeFormat(submitted) || !IsPickupCodeFormat(*stored) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(submitted)) == 1
}
