package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// PendingKey is the Redis list holding call logs whose store write failed.
const PendingKey = "calllogs:pending"

// ErrCorruptEntry means a queued entry could not be decoded. It has already
// been removed from the queue.
var ErrCorruptEntry = errors.New("corrupt pending call log")

// Claim is an entry taken off the queue but not yet acknowledged. Until Ack
// or Release it stays in the in-flight list, so a crash does not lose it.
type Claim struct {
	Entry NewCallLog
	raw   string
}

// PendingQueue parks call logs that could not be written after the remote call
// succeeded. Entries are drained by the reconcile command; run one drainer at a time.
type PendingQueue interface {
	Push(ctx context.Context, e NewCallLog) error
	// Claim returns (Claim{}, false, nil) when the queue is empty.
	Claim(ctx context.Context) (Claim, bool, error)
	// Ack forgets a claimed entry once it is stored.
	Ack(ctx context.Context, c Claim) error
	// Release puts a claimed entry back at the head so the next Claim returns it again.
	Release(ctx context.Context, c Claim) error
	// Recover returns entries left in flight by a drainer that died.
	Recover(ctx context.Context) (int64, error)
	// Len counts pending and in-flight entries.
	Len(ctx context.Context) (int64, error)
}

// RedisQueue is a FIFO over a Redis list: LPUSH in, LMOVE from the right end
// into a processing list, LREM on ack.
type RedisQueue struct {
	rdb        redis.Cmdable
	key        string
	processing string
}

func NewRedisQueue(rdb redis.Cmdable) *RedisQueue {
	return newRedisQueue(rdb, PendingKey)
}

func newRedisQueue(rdb redis.Cmdable, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key, processing: key + ":processing"}
}

func (q *RedisQueue) Push(ctx context.Context, e NewCallLog) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.key, b).Err()
}

func (q *RedisQueue) Claim(ctx context.Context) (Claim, bool, error) {
	raw, err := q.rdb.LMove(ctx, q.key, q.processing, "RIGHT", "LEFT").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Claim{}, false, nil
		}
		return Claim{}, false, err
	}
	var e NewCallLog
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		if rerr := q.rdb.LRem(ctx, q.processing, 1, raw).Err(); rerr != nil {
			return Claim{}, false, rerr
		}
		return Claim{}, false, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return Claim{Entry: e, raw: raw}, true, nil
}

func (q *RedisQueue) Ack(ctx context.Context, c Claim) error {
	return q.rdb.LRem(ctx, q.processing, 1, c.raw).Err()
}

func (q *RedisQueue) Release(ctx context.Context, c Claim) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processing, 1, c.raw)
		pipe.RPush(ctx, q.key, c.raw)
		return nil
	})
	return err
}

func (q *RedisQueue) Recover(ctx context.Context) (int64, error) {
	var n int64
	for {
		err := q.rdb.LMove(ctx, q.processing, q.key, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	pending, err := q.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, err
	}
	inflight, err := q.rdb.LLen(ctx, q.processing).Result()
	if err != nil {
		return 0, err
	}
	return pending + inflight, nil
}

// MemoryQueue is an in-process PendingQueue for tests and local runs without Redis.
type MemoryQueue struct {
	mu       sync.Mutex
	seq      int
	entries  []NewCallLog
	inflight []Claim
}

func NewMemoryQueue() *MemoryQueue { return &MemoryQueue{} }

func (q *MemoryQueue) Push(ctx context.Context, e NewCallLog) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
	return nil
}

func (q *MemoryQueue) Claim(ctx context.Context) (Claim, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return Claim{}, false, nil
	}
	q.seq++
	c := Claim{Entry: q.entries[0], raw: strconv.Itoa(q.seq)}
	q.entries = q.entries[1:]
	q.inflight = append(q.inflight, c)
	return c, true, nil
}

func (q *MemoryQueue) Ack(ctx context.Context, c Claim) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.forget(c)
	return nil
}

func (q *MemoryQueue) Release(ctx context.Context, c Claim) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.forget(c) {
		q.entries = append([]NewCallLog{c.Entry}, q.entries...)
	}
	return nil
}

func (q *MemoryQueue) Recover(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	back := make([]NewCallLog, 0, len(q.inflight)+len(q.entries))
	for _, c := range q.inflight {
		back = append(back, c.Entry)
	}
	n := int64(len(q.inflight))
	q.entries = append(back, q.entries...)
	q.inflight = nil
	return n, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.entries) + len(q.inflight)), nil
}

func (q *MemoryQueue) forget(c Claim) bool {
	for i, in := range q.inflight {
		if in.raw == c.raw {
			q.inflight = append(q.inflight[:i], q.inflight[i+1:]...)
			return true
		}
	}
	return false
}
