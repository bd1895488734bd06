package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMemory struct {
	Level string   `json:"level"`
	Stack []string `json:"previous_levels"`
}

func backends(t *testing.T) map[string]Store {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(time.Minute),
		"redis":  NewRedisStore(rdb, time.Minute),
	}
}

func TestStore_Lifecycle(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "s1")
			require.ErrorIs(t, err, ErrNotFound)

			s, err := New("s1", "254700000001", FlowFarmer, testMemory{Level: "root"})
			require.NoError(t, err)
			require.NoError(t, store.Create(ctx, s))
			assert.ErrorIs(t, store.Create(ctx, s), ErrAlreadyExists)

			got, err := store.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, FlowFarmer, got.Flow)
			assert.Equal(t, "254700000001", got.Phone)

			var mem testMemory
			require.NoError(t, got.Decode(&mem))
			assert.Equal(t, "root", mem.Level)

			require.NoError(t, got.Encode(FlowFarmer, testMemory{Level: "prices", Stack: []string{"root"}}))
			got.Consumed = 2
			require.NoError(t, store.Save(ctx, got))

			again, err := store.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, 2, again.Consumed)
			mem = testMemory{}
			require.NoError(t, again.Decode(&mem))
			assert.Equal(t, []string{"root"}, mem.Stack)

			require.NoError(t, store.Delete(ctx, "s1"))
			_, err = store.Get(ctx, "s1")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.Save(ctx, again), ErrNotFound)
		})
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemoryStore(time.Minute)
	m.now = func() time.Time { return now }

	s, err := New("s1", "254700000001", FlowRegistration, struct{}{})
	require.NoError(t, err)
	require.NoError(t, m.Create(ctx, s))
	assert.Equal(t, 1, m.Len())

	now = now.Add(2 * time.Minute)
	_, err = m.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, m.Create(ctx, s))
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisStore(rdb, 5*time.Minute)
	s, err := New("abc", "254700000001", FlowWholesaler, testMemory{Level: "root"})
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, s))

	assert.True(t, mr.Exists("ussd:session:abc"))
	assert.Equal(t, 5*time.Minute, mr.TTL("ussd:session:abc"))

	mr.FastForward(6 * time.Minute)
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}
