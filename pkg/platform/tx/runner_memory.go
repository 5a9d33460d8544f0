package tx

import (
	"context"
	"sync"
	"time"

	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
)

// MemoryRunner provides the atomicity contract for in-memory stores using
// sharded mutexes. Operations hash their lock key (see WithLockKey) onto a
// shard, so concurrent invests against different opportunities proceed in
// parallel while invests against the same opportunity serialize.
const numShards = 128

type MemoryRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{}
}

type memoryTxCtx struct{}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	// Join an already-open unit; the outer holder owns the shard lock.
	if held, _ := ctx.Value(memoryTxCtx{}).(bool); held {
		return fn(ctx)
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := r.selectShard(ctx)
	r.shards[shard].Lock()
	defer r.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(context.WithValue(ctx, memoryTxCtx{}, true))
}

func (r *MemoryRunner) selectShard(ctx context.Context) int {
	if key := LockKey(ctx); key != "" {
		return int(hashKey(key) % numShards)
	}
	return 0
}

// hashKey uses FNV-1a for even shard distribution.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
