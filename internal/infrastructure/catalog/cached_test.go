package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pivo/internal/domain/reservation"
)

// countingCatalog counts origin lookups.
type countingCatalog struct {
	reservation.Catalog
	calls int
}

func (c *countingCatalog) GetRestaurant(ctx context.Context, id string) (reservation.Restaurant, error) {
	c.calls++
	return c.Catalog.GetRestaurant(ctx, id)
}

func TestCachedFallsThroughWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	origin := &countingCatalog{Catalog: NewStatic(Seed()...)}
	c := &Cached{Origin: origin, Client: client, TTL: time.Minute}

	r, err := c.GetRestaurant(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "The Pivo", r.Name)
	assert.Equal(t, 1, origin.calls)

	_, err = c.GetRestaurant(context.Background(), "404")
	assert.ErrorIs(t, err, reservation.ErrRestaurantNotFound)
}

func TestCachedHitAndMiss(t *testing.T) {
	addr := os.Getenv("PIVO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PIVO_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	prefix := "pivo-test:" + time.Now().Format("150405.000000") + ":"
	t.Cleanup(func() { _ = client.Del(ctx, prefix+"1", prefix+"bad").Err() })

	origin := &countingCatalog{Catalog: NewStatic(Seed()...)}
	c := &Cached{Origin: origin, Client: client, TTL: time.Minute, Prefix: prefix}

	first, err := c.GetRestaurant(ctx, "1")
	require.NoError(t, err)
	second, err := c.GetRestaurant(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, origin.calls)

	ttl, err := client.TTL(ctx, prefix+"1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	// An undecodable entry is replaced from the origin.
	require.NoError(t, client.Set(ctx, prefix+"bad", "{not json", time.Minute).Err())
	origin.Catalog = NewStatic(reservation.Restaurant{ID: "bad", Name: "Recovered"})
	r, err := c.GetRestaurant(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, "Recovered", r.Name)
	assert.Equal(t, 2, origin.calls)
}
