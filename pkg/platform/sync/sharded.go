package sync

import (
	"sync"
)

// shardCount is fixed at 32; power of two so the modulo compiles to a mask.
const shardCount = 32

// ShardedMutex provides fine-grained locking using sharded read-write mutexes.
// Instead of a single global lock, operations are distributed across N shards
// based on a hash of the resource key, reducing contention under concurrent
// load. Writers to the same key (status list mutations, batch transitions)
// serialize; readers of a key can proceed in parallel via RLock.
type ShardedMutex struct {
	shards [shardCount]sync.RWMutex
}

// NewShardedMutex creates a new ShardedMutex.
func NewShardedMutex() *ShardedMutex {
	return &ShardedMutex{}
}

// Lock acquires the write lock for the given key's shard.
// Empty keys default to shard 0.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the write lock for the given key's shard.
func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

// RLock acquires the read lock for the given key's shard.
func (m *ShardedMutex) RLock(key string) {
	m.shards[m.shardFor(key)].RLock()
}

// RUnlock releases the read lock for the given key's shard.
func (m *ShardedMutex) RUnlock(key string) {
	m.shards[m.shardFor(key)].RUnlock()
}

// shardFor returns the shard index for the given key.
func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	return int(hashString(key) % uint32(shardCount))
}

// hashString provides a simple hash for shard selection.
// Uses djb2-style hashing for good distribution.
func hashString(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return h
}
