package catalog

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dkeye/barflow/internal/domain"
	"github.com/redis/go-redis/v9"
)

type countingCatalog struct {
	items map[string]domain.Item
	calls int
}

func (c *countingCatalog) LookupItem(_ context.Context, name string) (domain.Item, error) {
	c.calls++
	item, ok := c.items[name]
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return item, nil
}

func deadClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestLookupFallsThroughWhenRedisDown(t *testing.T) {
	rdb := deadClient()
	defer rdb.Close()
	next := &countingCatalog{items: map[string]domain.Item{"Mojito": {Name: "Mojito", Price: 220}}}
	c := NewCache(rdb, next, time.Minute)

	item, err := c.LookupItem(context.Background(), "Mojito")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if item.Price != 220 || next.calls != 1 {
		t.Fatalf("item = %+v, calls = %d", item, next.calls)
	}

	if _, err := c.LookupItem(context.Background(), "Daiquiri"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing item err = %v", err)
	}
}

func TestNewClientUnreachable(t *testing.T) {
	if c := NewClient(context.Background(), Options{Addr: "127.0.0.1:1"}); c != nil {
		t.Fatal("expected nil client for unreachable redis")
	}
	if c := NewClient(context.Background(), Options{}); c != nil {
		t.Fatal("expected nil client without address")
	}
}

func TestLookupHitsCache(t *testing.T) {
	addr := os.Getenv("BARFLOW_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BARFLOW_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := NewClient(ctx, Options{Addr: addr})
	if rdb == nil {
		t.Fatalf("redis at %s unreachable", addr)
	}
	defer rdb.Close()

	next := &countingCatalog{items: map[string]domain.Item{"Negroni": {Name: "Negroni", Price: 180}}}
	c := NewCache(rdb, next, time.Minute)
	c.Invalidate(ctx, "Negroni")
	defer c.Invalidate(ctx, "Negroni")

	for i := 0; i < 3; i++ {
		if _, err := c.LookupItem(ctx, "Negroni"); err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
	}
	if next.calls != 1 {
		t.Fatalf("backing store calls = %d, want 1", next.calls)
	}
}
