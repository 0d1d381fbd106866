package otp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"storefront/internal/model"
	"storefront/pkg/utils"
)

// Code range, inclusive
const (
	MinCode = 1000
	MaxCode = 9999
)

// Config manager configuration
type Config struct {
	// TTL zero keeps codes until they are used or replaced
	TTL      time.Duration
	HashCost int
}

// Manager issues and verifies one-time login codes
type Manager struct {
	store    Store
	ttl      time.Duration
	hashCost int
	now      func() time.Time
}

// NewManager creates a code manager on top of store
func NewManager(store Store, cfg Config) *Manager {
	cost := cfg.HashCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Manager{
		store:    store,
		ttl:      cfg.TTL,
		hashCost: cost,
		now:      time.Now,
	}
}

// Issue generates a fresh code for phone, replacing any unused one, and
// returns it so the caller can hand it to a delivery channel
func (m *Manager) Issue(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", utils.NewError(utils.CodeInvalidParam, "phone number is required")
	}

	n, err := utils.RandomIntRange(MinCode, MaxCode)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	code := strconv.FormatInt(n, 10)

	hash, err := bcrypt.GenerateFromPassword([]byte(code), m.hashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash code: %w", err)
	}

	now := m.now()
	session := &model.OtpSession{
		PhoneNumber: phone,
		CodeHash:    hash,
		IssuedAt:    now,
	}
	if m.ttl > 0 {
		session.ExpiresAt = now.Add(m.ttl)
	}

	if err := m.store.Save(ctx, session); err != nil {
		return "", utils.NewErrorWithErr(utils.CodeStorageError, "failed to store code", err)
	}
	return code, nil
}

// Verify checks code against the live code for phone. A match consumes
// the code. A mismatch leaves it in place for another attempt.
func (m *Manager) Verify(ctx context.Context, phone, code string) (bool, error) {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" {
		return false, nil
	}

	ok, err := m.store.Consume(ctx, phone, func(s *model.OtpSession) bool {
		return bcrypt.CompareHashAndPassword(s.CodeHash, []byte(code)) == nil
	})
	if err != nil {
		return false, utils.NewErrorWithErr(utils.CodeStorageError, "failed to verify code", err)
	}
	return ok, nil
}
