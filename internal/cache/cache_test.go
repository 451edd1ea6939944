package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLRUCache(t *testing.T) {
	t.Run("evicts_least_recently_used", func(t *testing.T) {
		c := NewLRUCache[int](2, time.Minute)
		c.Set("a", 1)
		c.Set("b", 2)
		c.Get("a")
		c.Set("c", 3)

		if _, ok := c.Get("b"); ok {
			t.Error("expected b to be evicted")
		}
		if v, ok := c.Get("a"); !ok || v != 1 {
			t.Errorf("expected a=1, got %v %v", v, ok)
		}
		if c.Len() != 2 {
			t.Errorf("expected 2 entries, got %d", c.Len())
		}
	})

	t.Run("expires_entries", func(t *testing.T) {
		now := time.Now()
		c := NewLRUCache[string](10, time.Minute)
		c.now = func() time.Time { return now }
		c.Set("k", "v")
		c.SetWithTTL("short", "v", time.Second)

		now = now.Add(2 * time.Second)
		if _, ok := c.Get("short"); ok {
			t.Error("expected short entry to expire")
		}
		if _, ok := c.Get("k"); !ok {
			t.Error("expected k to survive")
		}

		now = now.Add(2 * time.Minute)
		if removed := c.CleanExpired(); removed != 1 {
			t.Errorf("expected 1 removed, got %d", removed)
		}
	})

	t.Run("delete_and_clear", func(t *testing.T) {
		c := NewLRUCache[int](10, time.Minute)
		c.Set("a", 1)
		c.Set("b", 2)
		c.Delete("a")
		if _, ok := c.Get("a"); ok {
			t.Error("expected a to be deleted")
		}
		c.Clear()
		if c.Len() != 0 {
			t.Errorf("expected empty cache, got %d", c.Len())
		}
	})
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Minute)

	type payload struct {
		Total int64 `json:"total"`
	}
	if err := SetJSON(ctx, c, "p", payload{Total: 42}, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got payload
	ok, err := GetJSON(ctx, c, "p", &got)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Total != 42 {
		t.Errorf("expected 42, got %d", got.Total)
	}

	ok, err = GetJSON(ctx, c, "missing", &got)
	if err != nil || ok {
		t.Errorf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	c := NewRedisCache(client, "test:")

	t.Run("miss", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "nothing")
		if err != nil || ok {
			t.Errorf("expected clean miss, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("set_get_delete", func(t *testing.T) {
		if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !mr.Exists("test:k") {
			t.Error("expected prefixed key in redis")
		}
		data, ok, err := c.Get(ctx, "k")
		if err != nil || !ok || string(data) != "v" {
			t.Errorf("expected v, got %q ok=%v err=%v", data, ok, err)
		}
		if err := c.Delete(ctx, "k"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mr.Exists("test:k") {
			t.Error("expected key to be deleted")
		}
	})

	t.Run("ttl_applies", func(t *testing.T) {
		if err := c.Set(ctx, "ttl", []byte("v"), time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		mr.FastForward(2 * time.Second)
		if _, ok, _ := c.Get(ctx, "ttl"); ok {
			t.Error("expected key to expire")
		}
	})
}

func TestConnect(t *testing.T) {
	t.Run("empty_addr_disables", func(t *testing.T) {
		client, err := Connect("", "", 0)
		if client != nil || err != nil {
			t.Errorf("expected nil client and error, got %v %v", client, err)
		}
	})

	t.Run("reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := Connect(mr.Addr(), "", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer client.Close()
	})
}
