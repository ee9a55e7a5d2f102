package calls

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
)

// Runs against a real server only when REDIS_TEST_ADDR is set.
func TestRedisQueue_ClaimAckRelease(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	q := newRedisQueue(rdb, "test:"+t.Name())
	t.Cleanup(func() { rdb.Del(ctx, q.key, q.processing) })

	for _, id := range []string{"a", "b"} {
		if err := q.Push(ctx, NewCallLog{AgentID: 1, CallID: id}); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	c, ok, err := q.Claim(ctx)
	if err != nil || !ok || c.Entry.CallID != "a" {
		t.Fatalf("expected a first, got %+v ok=%v err=%v", c, ok, err)
	}
	if n, _ := rdb.LLen(ctx, q.processing).Result(); n != 1 {
		t.Fatalf("expected claimed entry in processing list, got %d", n)
	}
	if err := q.Release(ctx, c); err != nil {
		t.Fatalf("release: %v", err)
	}
	if n, _ := q.Len(ctx); n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
	c, _, _ = q.Claim(ctx)
	if c.Entry.CallID != "a" {
		t.Fatalf("expected released a, got %q", c.Entry.CallID)
	}

	// Left in flight, as if the drainer died.
	if n, err := q.Recover(ctx); err != nil || n != 1 {
		t.Fatalf("recover: n=%d err=%v", n, err)
	}
	c, _, _ = q.Claim(ctx)
	if c.Entry.CallID != "a" {
		t.Fatalf("expected recovered a first, got %q", c.Entry.CallID)
	}
	if err := q.Ack(ctx, c); err != nil {
		t.Fatalf("ack: %v", err)
	}
	c, _, _ = q.Claim(ctx)
	_ = q.Ack(ctx, c)
	if _, ok, err := q.Claim(ctx); ok || err != nil {
		t.Fatalf("expected empty queue, ok=%v err=%v", ok, err)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Fatalf("expected nothing in flight, got %d", n)
	}
}
