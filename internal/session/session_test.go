package session

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapGetter map[string]string

func (m mapGetter) Get(_ context.Context, key string) *redis.StringCmd {
	if key == "session:broken" {
		return redis.NewStringResult("", errors.New("i/o timeout"))
	}
	v, ok := m[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestStore_UserID(t *testing.T) {
	s := NewStore(mapGetter{
		"session:abc": "42",
		"session:bad": "not-a-number",
	})
	ctx := context.Background()

	id, err := s.UserID(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = s.UserID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = s.UserID(ctx, "  ")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = s.UserID(ctx, "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)

	_, err = s.UserID(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}
