// Package sharded provides lock-striped containers for state shared
// between the watch goroutines and their owners.
package sharded

import (
	"sync"
)

type setShard struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

// Set is a string set striped over multiple shards so that concurrent
// registrations (watched directories, in-flight loads) rarely contend
// on the same lock.
type Set []*setShard

// NewSet creates a set with numShards shards, which must be a power of
// two.
func NewSet(numShards int) *Set {
	if !isPowerOfTwo(numShards) {
		panic("num shards must be a power of 2")
	}
	s := make(Set, numShards)
	for i := 0; i < numShards; i++ {
		s[i] = &setShard{items: make(map[string]struct{})}
	}
	return &s
}

func (s *Set) getShard(key string) *setShard {
	return (*s)[getShardIndex(key, len(*s))]
}

// Has checks for the presence of a key.
func (s *Set) Has(key string) bool {
	shard := s.getShard(key)
	shard.mu.RLock()
	_, exists := shard.items[key]
	shard.mu.RUnlock()
	return exists
}

// LoadOrStore ensures a key is present, returning true if it already
// was. This is an atomic operation: of two concurrent callers exactly
// one observes false.
func (s *Set) LoadOrStore(key string) (loaded bool) {
	shard := s.getShard(key)
	shard.mu.Lock()
	_, loaded = shard.items[key]
	if !loaded {
		shard.items[key] = struct{}{}
	}
	shard.mu.Unlock()
	return loaded
}

// Delete removes a key. Deleting an absent key is a no-op.
func (s *Set) Delete(key string) {
	shard := s.getShard(key)
	shard.mu.Lock()
	delete(shard.items, key)
	shard.mu.Unlock()
}

// Count returns the total number of elements in the set.
func (s *Set) Count() int {
	count := 0
	for i := 0; i < len(*s); i++ {
		shard := (*s)[i]
		shard.mu.RLock()
		count += len(shard.items)
		shard.mu.RUnlock()
	}
	return count
}

// Keys returns all keys in no particular order.
func (s *Set) Keys() []string {
	keys := make([]string, 0, s.Count())
	for i := 0; i < len(*s); i++ {
		shard := (*s)[i]
		shard.mu.RLock()
		for k := range shard.items {
			keys = append(keys, k)
		}
		shard.mu.RUnlock()
	}
	return keys
}

// Clear removes all keys.
func (s *Set) Clear() {
	for i := 0; i < len(*s); i++ {
		shard := (*s)[i]
		shard.mu.Lock()
		shard.items = make(map[string]struct{})
		shard.mu.Unlock()
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
