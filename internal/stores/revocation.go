package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRevocationBackend wraps any Redis failure so callers can fail closed
// without matching driver errors.
var ErrRevocationBackend = errors.New("revocation backend unavailable")

// RevocationStore tracks revoked refresh token IDs. An entry lives exactly
// as long as the token it blocks could still be presented, so the set stays
// bounded without any sweeper.
type RevocationStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRevocationStore(redisClient redis.UniversalClient, prefix string) *RevocationStore {
	if prefix == "" {
		prefix = "rvk"
	}
	return &RevocationStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RevocationStore) key(jti string) string {
	return s.prefix + ":" + jti
}

// Revoke marks jti as unusable for ttl. A non-positive ttl means the token
// has already expired and there is nothing to block.
func (s *RevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.key(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationBackend, err)
	}
	return nil
}

// IsRevoked reports whether jti has been revoked and is still inside the
// window where the token could be replayed.
func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRevocationBackend, err)
	}
	return n > 0, nil
}
