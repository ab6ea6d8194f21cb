// Package syncutil holds the per-order lock used to serialise transitions
// inside one process.
package syncutil

import (
	"context"
	"hash/fnv"
)

const shardCount = 256

// KeyLock is a fixed pool of channel mutexes addressed by key hash. Two keys
// may share a shard; that only costs throughput.
type KeyLock struct {
	shards [shardCount]chan struct{}
}

func NewKeyLock() *KeyLock {
	l := &KeyLock{}
	for i := range l.shards {
		l.shards[i] = make(chan struct{}, 1)
		l.shards[i] <- struct{}{}
	}
	return l
}

// Lock waits for key's shard or for ctx to end. On success the returned
// func must be called to unlock.
func (l *KeyLock) Lock(ctx context.Context, key string) (func(), error) {
	shard := l.shards[shardIndex(key)]
	select {
	case <-shard:
		return func() { shard <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
