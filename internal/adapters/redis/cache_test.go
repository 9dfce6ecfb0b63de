package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	redisad "findmyroom/internal/adapters/redis"
	"findmyroom/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	lat, lon := 19.1364, 72.8296
	in := domain.Listing{
		ID: "r1", OwnerID: "u1", BHKType: "1BHK", Price: 12000,
		State: "Maharashtra", District: "Mumbai", Lat: &lat, Lon: &lon,
		ImageURLs: []string{"a.jpg"},
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	if err := c.Set(ctx, "listing:r1", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("test:listing:r1") {
		t.Fatalf("expected prefixed key in redis, have %v", mr.Keys())
	}
	if ttl := mr.TTL("test:listing:r1"); ttl != 60*time.Second {
		t.Fatalf("unexpected ttl %s", ttl)
	}

	var out domain.Listing
	ok, err := c.Get(ctx, "listing:r1", &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	if err := c.Del(ctx, "listing:r1"); err != nil {
		t.Fatalf("del: %v", err)
	}
	ok, err = c.Get(ctx, "listing:r1", &out)
	if err != nil || ok {
		t.Fatalf("expected miss after del: ok=%v err=%v", ok, err)
	}
}

func TestCache_ExpiredIsMiss(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "listing:r2", domain.Listing{ID: "r2"}, 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Second)

	var out domain.Listing
	if ok, err := c.Get(ctx, "listing:r2", &out); ok || err != nil {
		t.Fatalf("expected miss after expiry: ok=%v err=%v", ok, err)
	}
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newCache(t)
	if err := mr.Set("test:listing:bad", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var out domain.Listing
	ok, err := c.Get(context.Background(), "listing:bad", &out)
	if ok || err == nil {
		t.Fatalf("expected decode error and miss, got ok=%v err=%v", ok, err)
	}
}
