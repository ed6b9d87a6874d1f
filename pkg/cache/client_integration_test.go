//go:build integration

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/user-service/internal/testutil"
)

func TestIntegration_CacheAgainstContainer(t *testing.T) {
	host, port := testutil.StartRedis(t)

	cfg := DefaultConfig()
	cfg.Host = host
	cfg.Port = port

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set(ctx, fmt.Sprintf("user_%d", i), "v", time.Minute)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 200; i += 50 {
		if _, ok := c.Get(ctx, fmt.Sprintf("user_%d", i)); !ok {
			t.Errorf("user_%d missing", i)
		}
	}

	if n := c.DeleteByPattern(ctx, "user_*"); n != 200 {
		t.Errorf("DeleteByPattern() = %d, want 200", n)
	}
}

func TestIntegration_StoreDown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1 // nothing listens here
	cfg.DialTimeout = 200 * time.Millisecond

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "k", "v", time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get() hit with store down")
	}
}
