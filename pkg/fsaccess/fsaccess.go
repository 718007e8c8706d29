// Package fsaccess is the entry point of the filesystem layer: it owns
// the platform separator, constructs file handles and directory
// notifiers, and implements the name and path codecs that keep remote
// names storable on local filesystems.
package fsaccess

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"github.com/openmirror/localfs/pkg/dirnotify"
	"github.com/openmirror/localfs/pkg/fileaccess"
	"github.com/openmirror/localfs/pkg/localpath"
	"github.com/openmirror/localfs/pkg/waiter"
)

// FileSystemAccess is the per-client facade over the local filesystem.
// One instance is shared by all handles and notifiers of a client and
// carries the platform capabilities they consult.
type FileSystemAccess struct {
	// Sep is the platform path separator in local encoding.
	Sep localpath.Separator

	// SelfNotifyFiltering enables suppression of filesystem events that
	// describe the engine's own writes. It is a runtime capability:
	// backends that already filter their own events at the OS level can
	// switch it off.
	SelfNotifyFiltering bool

	w      *waiter.Waiter
	tmpSeq atomic.Uint64
}

// New creates the facade bound to w, which every handle and notifier
// constructed from it will wake on completion and on queued events.
func New(w *waiter.Waiter) *FileSystemAccess {
	return &FileSystemAccess{
		Sep:                 localpath.PlatformSeparator(),
		SelfNotifyFiltering: true,
		w:                   w,
	}
}

// Waiter returns the waiter shared by this facade's products.
func (fs *FileSystemAccess) Waiter() *waiter.Waiter {
	return fs.w
}

// NewFileAccess returns a fresh file handle on the platform backend.
func (fs *FileSystemAccess) NewFileAccess() *fileaccess.FileAccess {
	return fileaccess.New(fileaccess.NewPlatformOps(), fs.w)
}

// NewDirNotify creates a change notifier rooted at base. Events under
// ignore are dropped at the door. The tree and its root node feed the
// self-notification filter; both may be nil when no sync state exists
// yet, which disables that filter.
func (fs *FileSystemAccess) NewDirNotify(base, ignore localpath.LocalPath, tree dirnotify.Tree, root dirnotify.Node) (*dirnotify.DirNotify, error) {
	return dirnotify.New(dirnotify.Config{
		Base:          base,
		Ignore:        ignore,
		Sep:           fs.Sep,
		Tree:          tree,
		Root:          root,
		SelfNotify:    fs.SelfNotifyFiltering,
		NewFileAccess: fs.NewFileAccess,
		Waiter:        fs.w,
	})
}

// Name2Local converts a remote name to its on-disk local form: escape
// what the filesystem cannot store, then adopt the local encoding.
func (fs *FileSystemAccess) Name2Local(name string) localpath.LocalPath {
	return localpath.FromLocal([]byte(EscapeFsIncompatible(name)))
}

// Local2Name converts an on-disk name back to the remote form.
func (fs *FileSystemAccess) Local2Name(name localpath.LocalPath) string {
	return UnescapeFsIncompatible(string(name.Bytes()))
}

// Path2Local converts a whole path to local encoding. Unlike Name2Local
// it performs no escaping: separators must survive.
func (fs *FileSystemAccess) Path2Local(path string) localpath.LocalPath {
	return localpath.FromLocal([]byte(path))
}

// Local2Path renders a local path for display and logging.
func (fs *FileSystemAccess) Local2Path(path localpath.LocalPath) string {
	return string(path.Bytes())
}

// TmpNameLocal returns a process-unique temporary file name in local
// encoding, for staging downloads next to their destination.
func (fs *FileSystemAccess) TmpNameLocal() localpath.LocalPath {
	n := fs.tmpSeq.Add(1)
	return localpath.FromLocal(fmt.Appendf(nil, ".transfer.%d.%d.tmp", os.Getpid(), n))
}

// CapTimestamp clamps a modification time to the range representable in
// the 32-bit wire format. Pre-epoch and far-future times collapse to
// the range bounds instead of wrapping.
func CapTimestamp(t int64) int64 {
	if t < 0 {
		return 0
	}
	if t > math.MaxUint32 {
		return math.MaxUint32
	}
	return t
}
