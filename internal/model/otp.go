package model

import (
	"time"
)

// OtpSession the live code for one phone number. Only the bcrypt digest
// of the code is kept.
type OtpSession struct {
	PhoneNumber string    `json:"phone_number"`
	CodeHash    []byte    `json:"code_hash"`
	IssuedAt    time.Time `json:"issued_at"`
	// zero means no expiry
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the session is past its expiry at now
func (s *OtpSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
