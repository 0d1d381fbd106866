package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"storefront/internal/model"
	"storefront/internal/redis"
)

// Store holds at most one live session per phone number
type Store interface {
	// Save replaces any session stored for the same phone number
	Save(ctx context.Context, session *model.OtpSession) error
	// Consume deletes the session for phone if match accepts it and
	// reports whether it did. A rejected session stays in place.
	Consume(ctx context.Context, phone string, match func(*model.OtpSession) bool) (bool, error)
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*model.OtpSession
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.OtpSession),
		now:      time.Now,
	}
}

// Save stores session
func (s *MemoryStore) Save(_ context.Context, session *model.OtpSession) error {
	c := *session
	s.mu.Lock()
	s.sessions[session.PhoneNumber] = &c
	s.mu.Unlock()
	return nil
}

// Consume removes the session when match accepts it
func (s *MemoryStore) Consume(_ context.Context, phone string, match func(*model.OtpSession) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[phone]
	if !ok {
		return false, nil
	}
	if session.Expired(s.now()) {
		delete(s.sessions, phone)
		return false, nil
	}
	if !match(session) {
		return false, nil
	}
	delete(s.sessions, phone)
	return true, nil
}

// Len returns the number of stored sessions
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RedisStore keeps sessions in Redis so several instances share them
type RedisStore struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed session store
func NewRedisStore(client *goredis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "otp:"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(phone string) string {
	return s.prefix + phone
}

// Save writes session with a TTL matching its expiry
func (s *RedisStore) Save(ctx context.Context, session *model.OtpSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal otp session: %w", err)
	}

	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			// already expired, but it still replaces whatever was stored
			if err := s.client.Del(ctx, s.key(session.PhoneNumber)).Err(); err != nil {
				return fmt.Errorf("failed to clear otp session: %w", err)
			}
			return nil
		}
	}

	if err := s.client.Set(ctx, s.key(session.PhoneNumber), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save otp session: %w", err)
	}
	return nil
}

// Consume reads the session, checks it with match and deletes it only if
// the stored value is still the one that was checked
func (s *RedisStore) Consume(ctx context.Context, phone string, match func(*model.OtpSession) bool) (bool, error) {
	key := s.key(phone)
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read otp session: %w", err)
	}

	var session model.OtpSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return false, fmt.Errorf("failed to unmarshal otp session: %w", err)
	}
	if session.Expired(s.now()) || !match(&session) {
		return false, nil
	}

	return redis.CompareAndDelete(ctx, s.client, key, raw)
}
