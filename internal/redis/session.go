package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionTTL bounds how long a check-in is remembered.
const SessionTTL = 12 * time.Hour

const sessionVenuePrefix = "session:venue:"

// SessionStore keeps per-user session state in Redis.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &SessionStore{client: client, ttl: ttl}
}

// LoadVenue returns the venue the user is checked in at, or "" when none.
func (s *SessionStore) LoadVenue(ctx context.Context, userID string) (string, error) {
	venueID, err := s.client.Get(ctx, sessionVenuePrefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return venueID, nil
}

// SaveVenue records the venue the user checked in at.
func (s *SessionStore) SaveVenue(ctx context.Context, userID, venueID string) error {
	return s.client.Set(ctx, sessionVenuePrefix+userID, venueID, s.ttl).Err()
}

// ClearVenue forgets the user's check-in.
func (s *SessionStore) ClearVenue(ctx context.Context, userID string) error {
	return s.client.Del(ctx, sessionVenuePrefix+userID).Err()
}
