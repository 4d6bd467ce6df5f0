package session

import (
	"hash/fnv"
	"sync"
)

const mutexShards = 64

// keyedMutex serializes critical sections per key (session token or
// principal id) without a global lock, so unrelated sessions never contend.
// Keys are hashed onto a fixed set of shards; two keys may share a shard,
// which costs contention but never correctness. Callers must never hold two
// shard locks at once.
type keyedMutex struct {
	shards [mutexShards]sync.Mutex
}

// Lock acquires the shard for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	shard := &k.shards[shardIndex(key)]
	shard.Lock()
	return shard.Unlock
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % mutexShards
}
