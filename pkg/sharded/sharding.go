package sharded

import "hash/fnv"

// getShardIndex maps a key to its shard with FNV-1a. numShards must be
// a power of 2 so the modulus reduces to a bitwise AND.
func getShardIndex(key string, numShards int) int {
	h := fnv.New32a()
	// Write never returns an error for FNV-1a.
	h.Write([]byte(key))
	return int(h.Sum32() & uint32(numShards-1))
}
