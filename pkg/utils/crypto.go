package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// SHA256 calculate SHA256 hash value
func SHA256(data string) string {
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// RandomIntRange returns a uniformly distributed integer in [min, max]
// drawn from crypto/rand.
func RandomIntRange(min, max int64) (int64, error) {
	if max < min {
		return 0, errors.New("invalid range")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return 0, err
	}
	return min + n.Int64(), nil
}

// GenerateRandomString generate random string
func GenerateRandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[num.Int64()]
	}
	return string(result)
}

// MaskString mask string (for sensitive information display)
func MaskString(str string, start, end int, mask rune) string {
	runes := []rune(str)
	if len(runes) <= start+end {
		return strings.Repeat(string(mask), len(runes))
	}

	for i := start; i < len(runes)-end; i++ {
		runes[i] = mask
	}
	return string(runes)
}

// MaskPhone keeps the first two and last two digits of a phone number
func MaskPhone(phone string) string {
	if len(phone) < 6 {
		return strings.Repeat("*", len(phone))
	}
	return MaskString(phone, 2, 2, '*')
}

// LastN returns the last n runes of s, or s itself when shorter
func LastN(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
