package fileaccess

import (
	"sync"
	"sync/atomic"

	"github.com/openmirror/localfs/pkg/localpath"
	"github.com/openmirror/localfs/pkg/waiter"
)

// AsyncOp identifies the kind of asynchronous operation a context carries.
type AsyncOp int8

const (
	OpNone AsyncOp = iota
	OpOpen
	OpRead
	OpWrite
)

// Access is the access-mode bitset requested by an asynchronous open.
type Access uint8

const (
	AccessNone  Access = 0
	AccessRead  Access = 1 << 0
	AccessWrite Access = 1 << 1
)

// AsyncIOContext describes one in-flight asynchronous operation. The
// issuer owns the context; the platform backend has exclusive mutation
// rights until it calls Complete, after which the result fields are
// stable and readable.
//
// A context must not be released before the operation finished; Release
// joins the operation first, exactly like a blocking destructor.
type AsyncIOContext struct {
	Op     AsyncOp
	Access Access

	// Path is set for OPEN operations.
	Path localpath.LocalPath

	// Buffer is the read destination or write source. For reads its
	// length is Len+Pad; the backend fills the first Len bytes and the
	// padding stays zeroed.
	Buffer []byte
	Pos    int64
	Len    int
	Pad    int

	// Failed and Retry communicate the outcome; they are meaningful only
	// once Finished reports true.
	Failed bool
	Retry  bool

	finished atomic.Bool
	done     chan struct{}
	once     sync.Once

	fa *FileAccess
	w  *waiter.Waiter
}

// Complete marks the operation finished with the given outcome, wakes the
// shared waiter and unblocks Finish. All result fields must be in their
// final state before the call. Only the first call has any effect.
func (c *AsyncIOContext) Complete(failed, retry bool) {
	c.once.Do(func() {
		c.Failed = failed
		c.Retry = retry
		c.finished.Store(true)
		close(c.done)
		if c.w != nil {
			c.w.Notify()
		}
	})
}

// Finished reports whether the operation reached its terminal state.
func (c *AsyncIOContext) Finished() bool {
	return c.finished.Load()
}

// Done returns a channel closed exactly once, after all result fields are
// final. It is the completion signal for select-based callers.
func (c *AsyncIOContext) Done() <-chan struct{} {
	return c.done
}

// Finish blocks until the operation completed, cooperatively parking on
// the shared waiter. It must not be called from the wake-delivery path
// itself. After observing completion it re-notifies the waiter, since the
// wake it consumed may have been meant for an external event too.
func (c *AsyncIOContext) Finish() {
	if c.finished.Load() {
		return
	}
	for !c.finished.Load() {
		if c.w != nil {
			c.w.Wait()
		} else {
			<-c.done
		}
	}
	if c.w != nil {
		c.w.Notify()
	}
}

// Release joins the operation and returns the context's resources. A READ
// context drops its reference on the owning handle, closing the shared OS
// handle once the last overlapping reader is gone.
func (c *AsyncIOContext) Release() {
	c.Finish()
	if c.Op == OpRead && c.fa != nil {
		c.fa.asyncCloseF()
	}
}
