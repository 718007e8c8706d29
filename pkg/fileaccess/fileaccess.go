// Package fileaccess provides the synchronous and asynchronous handle
// abstraction over one on-disk file.
//
// A FileAccess moves between three states: closed, stat-checked (size and
// mtime cached from the last successful stat) and open. Reopening refuses
// stale handles: if size or mtime changed since the last stat the caller
// must re-evaluate the file instead of blindly retrying. The asynchronous
// family shares one open OS handle between overlapping reads through a
// refcount, closing it only when the count returns to zero.
package fileaccess

import (
	"github.com/openmirror/localfs/pkg/localpath"
	"github.com/openmirror/localfs/pkg/plog"
	"github.com/openmirror/localfs/pkg/waiter"
)

// FileAccess is the handle and cached metadata for one file on disk. It
// exclusively owns its OS handle through the SysOps backend.
type FileAccess struct {
	// Cached metadata from the last successful stat.
	Size  int64
	MTime int64
	Type  Type

	// FSID is the filesystem identity from the last stat, when the
	// backend provides stable ids.
	FSID      uint64
	FSIDValid bool

	// Retry is set after a failed stat or open that is worth re-attempting
	// (transient failure). A failure with Retry false means the target is
	// gone or permanently inaccessible.
	Retry bool

	sys SysOps
	w   *waiter.Waiter

	localname localpath.LocalPath

	// nonblocking marks a handle prepared through FOpen: reopening it
	// stat-checks for staleness first.
	nonblocking   bool
	asyncOpened   bool
	numAsyncReads int
}

// New wraps a platform backend into a FileAccess. The waiter receives the
// completion wake of every asynchronous operation issued on the handle.
func New(sys SysOps, w *waiter.Waiter) *FileAccess {
	return &FileAccess{sys: sys, w: w}
}

func (f *FileAccess) updateLocalName(name localpath.LocalPath) {
	f.localname = name.Clone()
}

// LocalName returns the path this handle was last prepared for.
func (f *FileAccess) LocalName() localpath.LocalPath {
	return f.localname
}

// statOnce stats the current localname. On failure it records whether the
// condition is transient in Retry and reports false.
func (f *FileAccess) statOnce() (StatInfo, bool) {
	st, err := f.sys.Stat(f.localname)
	if err != nil {
		f.Retry = IsTransient(err)
		return StatInfo{}, false
	}
	return st, true
}

// FOpen prepares the handle for nonblocking use: it records the target
// path and stats it, caching size, mtime, type and filesystem id. It
// reports false when the stat failed; Retry then distinguishes transient
// failures from a missing target.
func (f *FileAccess) FOpen(name localpath.LocalPath) bool {
	f.nonblocking = true
	f.updateLocalName(name)

	st, ok := f.statOnce()
	if !ok {
		f.Type = TypeUnknown
		return false
	}
	f.Size = st.Size
	f.MTime = st.MTime
	f.Type = st.Type
	f.FSID = st.FSID
	f.FSIDValid = st.FSIDValid
	f.Retry = false
	return true
}

// IsFolder stats name and reports whether it is a directory.
func (f *FileAccess) IsFolder(name localpath.LocalPath) bool {
	f.FOpen(name)
	return f.Type == TypeFolder
}

// OpenF re-stats the target and opens the OS handle for reading. If size
// or mtime changed since the last stat, the file needs re-evaluation: the
// cached values are updated, Retry is cleared and OpenF fails rather than
// opening stale data.
func (f *FileAccess) OpenF() bool {
	if !f.nonblocking {
		// Not prepared through FOpen; nothing to re-check.
		return true
	}

	st, ok := f.statOnce()
	if !ok {
		plog.Warn("Reopen stat failed", "path", string(f.localname.Bytes()), "retry", f.Retry)
		return false
	}

	if st.MTime != f.MTime || st.Size != f.Size {
		f.MTime = st.MTime
		f.Size = st.Size
		f.Retry = false
		return false
	}

	if err := f.sys.Open(f.localname, false); err != nil {
		f.Retry = IsTransient(err)
		return false
	}
	return true
}

// CloseF releases the OS handle acquired by OpenF.
func (f *FileAccess) CloseF() {
	if f.nonblocking {
		if err := f.sys.Close(); err != nil {
			plog.Warn("Close failed", "path", string(f.localname.Bytes()), "error", err)
		}
	}
}

// FRead opens the file, reads exactly n bytes at pos into a fresh buffer
// of n+pad bytes (the pad suffix stays zeroed) and closes it again.
func (f *FileAccess) FRead(n, pad int, pos int64) ([]byte, bool) {
	if !f.OpenF() {
		return nil, false
	}

	dst := make([]byte, n+pad)
	err := f.sys.Read(dst[:n], pos)

	f.CloseF()

	if err != nil {
		f.Retry = IsTransient(err)
		return nil, false
	}
	return dst, true
}

// FRawRead reads len(dst) bytes at pos. When callerOpened is set the
// handle is assumed open and stays open; otherwise the read opens and
// closes around the access.
func (f *FileAccess) FRawRead(dst []byte, pos int64, callerOpened bool) bool {
	if !callerOpened && !f.OpenF() {
		return false
	}

	err := f.sys.Read(dst, pos)

	if !callerOpened {
		f.CloseF()
	}

	if err != nil {
		f.Retry = IsTransient(err)
		return false
	}
	return true
}

func (f *FileAccess) newContext(op AsyncOp) *AsyncIOContext {
	return &AsyncIOContext{
		Op:   op,
		done: make(chan struct{}),
		fa:   f,
		w:    f.w,
	}
}

// AsyncFOpen prepares the handle like FOpen but reports the result through
// an async context. The stat itself runs synchronously; the context is
// completed before return, with the cached size and mtime adopted.
func (f *FileAccess) AsyncFOpen(name localpath.LocalPath) *AsyncIOContext {
	f.nonblocking = true
	f.updateLocalName(name)

	plog.Debug("Async open start", "path", string(name.Bytes()))
	c := f.newContext(OpOpen)
	c.Access = AccessRead
	c.Path = name.Clone()

	st, ok := f.statOnce()
	if ok {
		f.Size = st.Size
		f.MTime = st.MTime
		f.Type = st.Type
		f.FSID = st.FSID
		f.FSIDValid = st.FSIDValid
		f.Retry = false
	}
	c.Pos = f.Size
	c.Complete(!ok, f.Retry)
	return c
}

// AsyncFOpenAccess opens the target with the requested access modes
// through the platform's asynchronous open hook.
func (f *FileAccess) AsyncFOpenAccess(name localpath.LocalPath, read, write bool, pos int64) *AsyncIOContext {
	plog.Debug("Async open start", "path", string(name.Bytes()), "read", read, "write", write)
	c := f.newContext(OpOpen)
	c.Access = AccessNone
	if read {
		c.Access |= AccessRead
	}
	if write {
		c.Access |= AccessWrite
	}
	c.Path = name.Clone()
	c.Pos = pos

	f.sys.AsyncOpen(c)
	return c
}

// asyncOpenF acquires a reference on the shared async read handle,
// opening it on first use after the same staleness check as OpenF.
func (f *FileAccess) asyncOpenF() bool {
	f.numAsyncReads++
	if !f.nonblocking {
		return true
	}
	if f.asyncOpened {
		return true
	}

	st, ok := f.statOnce()
	if !ok {
		plog.Warn("Async reopen stat failed", "path", string(f.localname.Bytes()), "retry", f.Retry)
		return false
	}

	if st.MTime != f.MTime || st.Size != f.Size {
		f.MTime = st.MTime
		f.Size = st.Size
		f.Retry = false
		return false
	}

	plog.Debug("Opening async file handle for reading", "path", string(f.localname.Bytes()))
	if err := f.sys.Open(f.localname, true); err != nil {
		plog.Warn("Async open failed", "path", string(f.localname.Bytes()), "error", err)
		f.Retry = IsTransient(err)
		return false
	}
	f.asyncOpened = true
	return true
}

// asyncCloseF drops one reference on the shared async read handle and
// closes it when the last overlapping read is gone.
func (f *FileAccess) asyncCloseF() {
	f.numAsyncReads--
	if f.asyncOpened && f.numAsyncReads == 0 {
		plog.Debug("Closing async file handle", "path", string(f.localname.Bytes()))
		f.asyncOpened = false
		if err := f.sys.Close(); err != nil {
			plog.Warn("Async close failed", "path", string(f.localname.Bytes()), "error", err)
		}
	}
}

// NumAsyncReads returns the current refcount on the shared async handle.
func (f *FileAccess) NumAsyncReads() int {
	return f.numAsyncReads
}

// AsyncOpened reports whether the shared async read handle is open.
func (f *FileAccess) AsyncOpened() bool {
	return f.asyncOpened
}

// AsyncFRead reads n bytes at pos into a fresh n+pad byte buffer through
// the platform's asynchronous read hook. Overlapping reads on the same
// handle share one open OS handle via refcount.
func (f *FileAccess) AsyncFRead(n, pad int, pos int64) *AsyncIOContext {
	plog.Debug("Async read start", "path", string(f.localname.Bytes()), "len", n, "pos", pos)
	c := f.newContext(OpRead)
	c.Buffer = make([]byte, n+pad)
	c.Len = n
	c.Pad = pad
	c.Pos = pos

	if !f.asyncOpenF() {
		plog.Warn("Async read could not open handle", "path", string(f.localname.Bytes()))
		c.Complete(true, f.Retry)
		return c
	}

	f.sys.AsyncRead(c)
	return c
}

// AsyncFWrite writes data at pos through the platform's asynchronous
// write hook.
func (f *FileAccess) AsyncFWrite(data []byte, pos int64) *AsyncIOContext {
	plog.Debug("Async write start", "path", string(f.localname.Bytes()), "len", len(data), "pos", pos)
	c := f.newContext(OpWrite)
	c.Buffer = data
	c.Len = len(data)
	c.Pos = pos

	f.sys.AsyncWrite(c)
	return c
}
