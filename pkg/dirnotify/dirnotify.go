// Package dirnotify queues local filesystem change notifications for
// the sync engine.
//
// Events arrive from a platform watch backend, pass an ignore filter
// and a self-notification filter, and land in per-category FIFO queues
// with decisecond timestamps. Consecutive duplicates collapse into one
// entry. The notifier reports its health explicitly: it starts failed
// until the watch on the root is established, and it degrades again
// when the backend loses events, so the engine knows when to fall back
// to a full rescan.
package dirnotify

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/openmirror/localfs/pkg/fileaccess"
	"github.com/openmirror/localfs/pkg/localpath"
	"github.com/openmirror/localfs/pkg/plog"
	"github.com/openmirror/localfs/pkg/waiter"
)

// Queue selects one of the notification categories.
type Queue int

const (
	// DirEvents receives filesystem events from the watch backend.
	DirEvents Queue = iota

	// Extra receives notifications the engine injects itself, such as
	// paths re-queued after a transient failure while processing them.
	Extra

	numQueues
)

// Notification is one queued change.
type Notification struct {
	// Timestamp is the queueing time in deciseconds since process
	// start. Zero marks a notification that must be processed
	// immediately, before any debounce delay.
	Timestamp int64

	// Base is the tree node Path is relative to; nil means the watch
	// root.
	Base Node

	// Path is the affected path relative to Base, in local encoding.
	// It may be empty when the base itself changed.
	Path localpath.LocalPath
}

// Config carries everything a notifier needs. Base is required; the
// rest is optional to varying degrees.
type Config struct {
	// Base is the absolute watch root in local encoding.
	Base localpath.LocalPath

	// Ignore is an absolute path whose subtree never produces
	// notifications (the engine's debris directory). Empty disables it.
	Ignore localpath.LocalPath

	// Sep is the platform separator.
	Sep localpath.Separator

	// Tree and Root feed the self-notification filter. Nil disables it.
	Tree Tree
	Root Node

	// SelfNotify enables the self-notification filter. Backends that
	// filter their own events at the OS level leave it off.
	SelfNotify bool

	// NewFileAccess constructs the handles the self-notification filter
	// stats paths with. Required when SelfNotify is set with a Tree.
	NewFileAccess func() *fileaccess.FileAccess

	// Waiter is woken whenever a notification is queued or the health
	// changes. Required.
	Waiter *waiter.Waiter

	// Metrics receives event counters. Nil means no collection.
	Metrics Metrics
}

// DirNotify is one watch root's notification queue set.
type DirNotify struct {
	cfg Config

	mu     sync.Mutex
	queues [numQueues][]Notification

	// failed health: 0 is healthy; nonzero with a reason means events
	// may have been missed and the engine must rescan.
	failed       int
	failedReason string

	// overflows counts backend event losses since the last Failed
	// check. The watch goroutine increments it without the mutex.
	overflows atomic.Int64

	watch *watcher
}

// New creates the notifier and establishes the recursive watch on
// cfg.Base. The notifier starts failed and becomes healthy only once
// the watch stands; if the backend cannot be created at all, the error
// is returned and no notifier exists.
func New(cfg Config) (*DirNotify, error) {
	if cfg.Base.Empty() {
		return nil, errors.New("dirnotify: base path is required")
	}
	if cfg.Waiter == nil {
		return nil, errors.New("dirnotify: waiter is required")
	}
	if len(cfg.Sep) == 0 {
		cfg.Sep = localpath.PlatformSeparator()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &NoopMetrics{}
	}

	n := &DirNotify{
		cfg:          cfg,
		failed:       1,
		failedReason: "not initialized",
	}

	w, err := newWatcher(n)
	if err != nil {
		return nil, err
	}
	n.watch = w

	if err := w.watchTree(cfg.Base); err != nil {
		w.close()
		return nil, err
	}
	n.SetFailed(0, "")

	plog.Info("Directory notifier started", "base", string(cfg.Base.Bytes()))
	return n, nil
}

// Close stops the watch backend. Queued notifications stay readable.
func (n *DirNotify) Close() {
	if n.watch != nil {
		n.watch.close()
	}
}

// SetFailed records the notifier's health. code 0 with an empty reason
// means healthy.
func (n *DirNotify) SetFailed(code int, reason string) {
	n.mu.Lock()
	changed := n.failed != code
	n.failed = code
	n.failedReason = reason
	n.mu.Unlock()

	if changed {
		if code != 0 {
			plog.Warn("Directory notifier degraded", "code", code, "reason", reason)
		}
		n.cfg.Waiter.Notify()
	}
}

// Failed reports the notifier's health. Pending backend overflows are
// folded in on read: losing events degrades the notifier exactly like
// a failed watch, because both mean the queues are incomplete.
func (n *DirNotify) Failed() (int, string) {
	if o := n.overflows.Swap(0); o > 0 {
		n.cfg.Metrics.AddOverflows(o)
		n.SetFailed(1, "event overflow")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failed, n.failedReason
}

// Notify queues one change on q. A notification identical to the
// current queue tail (same base, same path) collapses into it: the
// tail's timestamp is refreshed so the debounce window restarts, unless
// the tail is marked immediate, which nothing may delay again.
func (n *DirNotify) Notify(q Queue, base Node, path localpath.LocalPath, immediate bool) {
	ts := waiter.Ds()
	if immediate {
		ts = 0
	}

	n.mu.Lock()
	queue := n.queues[q]
	if len(queue) > 0 {
		tail := &queue[len(queue)-1]
		if tail.Base == base && tail.Path.Equal(path) {
			if tail.Timestamp != 0 {
				tail.Timestamp = ts
			}
			n.mu.Unlock()
			n.cfg.Metrics.AddEventsDeduped(1)
			n.cfg.Waiter.Notify()
			return
		}
	}
	n.queues[q] = append(queue, Notification{Timestamp: ts, Base: base, Path: path.Clone()})
	n.mu.Unlock()

	n.cfg.Metrics.AddEventsQueued(1)
	n.cfg.Waiter.Notify()
}

// Pending returns the number of queued notifications on q.
func (n *DirNotify) Pending(q Queue) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queues[q])
}

// PopReady dequeues the head of q if it is due at time now (deciseconds
// since process start, compare waiter.Ds). An immediate notification is
// always due. Later entries never overtake an undue head: order within
// a queue is strictly FIFO.
func (n *DirNotify) PopReady(q Queue, now int64) (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	queue := n.queues[q]
	if len(queue) == 0 {
		return Notification{}, false
	}
	head := queue[0]
	if head.Timestamp > now {
		return Notification{}, false
	}
	n.queues[q] = queue[1:]
	return head, true
}

// fsEventReceived is the watch backend's entry point. abs is the
// absolute event path in local encoding. Events under the ignore path
// are dropped, then the self-notification filter runs, and survivors
// are queued on DirEvents.
func (n *DirNotify) fsEventReceived(abs localpath.LocalPath) {
	n.cfg.Metrics.AddEventsReceived(1)

	if !n.cfg.Ignore.Empty() && n.cfg.Ignore.IsContainingPathOf(abs, n.cfg.Sep) {
		n.cfg.Metrics.AddEventsIgnored(1)
		return
	}
	if !n.cfg.Base.IsContainingPathOf(abs, n.cfg.Sep) {
		// A watch left over from a renamed directory; nothing we track.
		n.cfg.Metrics.AddEventsIgnored(1)
		return
	}

	rel := abs.SubpathFrom(min(abs.Len(), n.cfg.Base.Len()+len(n.cfg.Sep)))

	if n.selfNotification(abs, rel) {
		plog.Debug("Suppressed self-notification", "path", string(abs.Bytes()))
		n.cfg.Metrics.AddEventsSuppressed(1)
		return
	}

	n.Notify(DirEvents, n.cfg.Root, rel, false)
}

// selfNotification reports whether the event at abs describes a state
// the engine itself produced. Two cases qualify: the path is unknown to
// the tree and permanently gone from disk (a temporary of ours that was
// already cleaned up), or it resolves to a synced node whose on-disk
// identity, type, name, timestamps and content still match the recorded
// sync state exactly. Any mismatch, any transient stat failure and any
// doubt lets the event through.
func (n *DirNotify) selfNotification(abs, rel localpath.LocalPath) bool {
	if !n.cfg.SelfNotify || n.cfg.Tree == nil || n.cfg.NewFileAccess == nil {
		return false
	}
	if n.cfg.Tree.Initializing() {
		return false
	}

	node, found := n.cfg.Tree.Lookup(n.cfg.Root, rel)
	fa := n.cfg.NewFileAccess()
	statOK := fa.FOpen(abs)

	if !found {
		return !statOK && !fa.Retry
	}

	cached, synced := node.Cached()
	if !statOK || !synced {
		return false
	}
	if cached.Type == fileaccess.TypeFile && !node.Fingerprint().Equal(cached.Fingerprint) {
		return false
	}
	if cached.Name != node.Name() {
		return false
	}
	if !fa.FSIDValid || fa.FSID != cached.FSID {
		return false
	}
	if fa.Type != cached.Type {
		return false
	}
	if cached.Type == fileaccess.TypeFile && (fa.MTime != cached.MTime || fa.Size != cached.Size) {
		return false
	}
	return true
}

// overflowed is called by the watch goroutine when the backend dropped
// events.
func (n *DirNotify) overflowed() {
	n.overflows.Add(1)
	n.cfg.Waiter.Notify()
}
