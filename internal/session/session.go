// Package session resolves bearer tokens issued by the auth service to user
// IDs stored in redis.
package session

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned when the token is unknown or expired.
var ErrNoSession = errors.New("session not found")

// Getter is the redis command the store needs.
type Getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Store looks sessions up under "session:<token>" keys.
type Store struct {
	rdb Getter
}

// NewStore creates a Store reading from rdb.
func NewStore(rdb Getter) *Store {
	return &Store{rdb: rdb}
}

// UserID returns the user the token belongs to.
func (s *Store) UserID(ctx context.Context, token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, ErrNoSession
	}
	v, err := s.rdb.Get(ctx, "session:"+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNoSession
		}
		return 0, errors.Wrap(err, "get session")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse session user %q", v)
	}
	return id, nil
}
