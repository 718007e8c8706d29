// Package pool provides reusable byte buffers for the I/O heavy parts of
// the filesystem layer (fingerprint sampling, snapshot encoding).
package pool

import (
	"fmt"
	"math/bits"
	"sync"
)

// BucketedBufferPool provides an O(1) lookup for reusable byte slices,
// bucketed by power-of-two capacity.
type BucketedBufferPool struct {
	minBucketExp int
	maxBucketExp int
	maxPoolSize  int64
	pools        []sync.Pool
}

// NewBucketedBufferPool creates a pool covering [minSize, maxSize]. Both
// bounds must be powers of two.
func NewBucketedBufferPool(minSize, maxSize int64) *BucketedBufferPool {
	if !isPowerOfTwo(minSize) {
		panic(fmt.Sprintf("minSize %d must be a power of two", minSize))
	}
	if !isPowerOfTwo(maxSize) {
		panic(fmt.Sprintf("maxSize %d must be a power of two", maxSize))
	}
	if maxSize <= minSize {
		panic("maxSize must be greater than minSize")
	}

	minExp := bits.TrailingZeros64(uint64(minSize))
	maxExp := bits.TrailingZeros64(uint64(maxSize))

	bp := &BucketedBufferPool{
		minBucketExp: minExp,
		maxBucketExp: maxExp,
		maxPoolSize:  int64(1) << maxExp,
		pools:        make([]sync.Pool, maxExp+1),
	}

	for i := minExp; i <= maxExp; i++ {
		size := int64(1) << i
		bp.pools[i].New = func() any {
			b := make([]byte, int(size))
			return &b
		}
	}
	return bp
}

// Get retrieves a pointer to a byte slice of exactly 'size' usable bytes.
// Requests beyond the largest bucket are allocated fresh and never pooled,
// to keep memory bounded.
func (bp *BucketedBufferPool) Get(size int64) *[]byte {
	if size <= 0 {
		b := make([]byte, 0)
		return &b
	}

	if size > bp.maxPoolSize {
		b := make([]byte, int(size))
		return &b
	}

	// Smallest power of two >= size.
	idx := bits.Len64(uint64(size - 1))
	if idx < bp.minBucketExp {
		idx = bp.minBucketExp
	}

	bufPtr := bp.pools[idx].Get().(*[]byte)
	*bufPtr = (*bufPtr)[:int(size)]
	return bufPtr
}

// Put returns the buffer to the pool if its capacity matches one of the
// buckets; anything else is dropped for the GC.
func (bp *BucketedBufferPool) Put(bufPtr *[]byte) {
	if bufPtr == nil {
		return
	}

	capacity := int64(cap(*bufPtr))
	if capacity < (int64(1)<<bp.minBucketExp) || capacity > bp.maxPoolSize || !isPowerOfTwo(capacity) {
		return
	}

	idx := bits.TrailingZeros64(uint64(capacity))
	*bufPtr = (*bufPtr)[:capacity]
	bp.pools[idx].Put(bufPtr)
}

func isPowerOfTwo(n int64) bool {
	return n > 0 && n&(n-1) == 0
}
