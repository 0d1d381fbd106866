package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims JWT claims
type JWTClaims struct {
	UserID      string `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager JWT manager
type JWTManager struct {
	secretKey    []byte
	issuer       string
	accessExpire time.Duration
	now          func() time.Time
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secretKey, issuer string, accessExpire time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:    []byte(secretKey),
		issuer:       issuer,
		accessExpire: accessExpire,
		now:          time.Now,
	}
}

// AccessExpire returns the lifetime of issued access tokens
func (m *JWTManager) AccessExpire() time.Duration {
	return m.accessExpire
}

// GenerateAccessToken generates an access token
func (m *JWTManager) GenerateAccessToken(userID, phone, role string) (string, error) {
	now := m.now()
	claims := &JWTClaims{
		UserID:      userID,
		PhoneNumber: phone,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessExpire)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// ValidateToken validates a token
func (m *JWTManager) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secretKey, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
