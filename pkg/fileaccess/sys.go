package fileaccess

import (
	"errors"
	"fmt"

	"github.com/openmirror/localfs/pkg/localpath"
)

// Type classifies what a path points at.
type Type int8

const (
	// TypeUnknown means the target was never stat'd or the stat failed.
	TypeUnknown Type = iota
	// TypeFile is a regular file.
	TypeFile
	// TypeFolder is a directory.
	TypeFolder
	// TypeOther covers symlinks, devices, sockets and the rest.
	TypeOther
)

func (t Type) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeFolder:
		return "folder"
	case TypeOther:
		return "other"
	default:
		return "unknown"
	}
}

// StatInfo is the metadata a platform backend reports for one path.
type StatInfo struct {
	Size  int64
	MTime int64 // Unix seconds
	Type  Type
	// FSID identifies the file on its filesystem (inode on unix, volume
	// file index on windows). Valid only when FSIDValid is set.
	FSID      uint64
	FSIDValid bool
}

// TransientError wraps a failure worth retrying with the same path, such
// as a sharing violation or an interrupted call. A stat or open failure
// that is NOT transient means the target is absent or permanently
// inaccessible.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err carries retry-later semantics.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// SysOps is the per-platform capability interface behind FileAccess. The
// portable core depends only on this contract, never on a concrete OS
// module. An implementation owns at most one OS handle at a time.
type SysOps interface {
	// Stat returns metadata for path without keeping a handle open.
	// Transient failures must be wrapped in TransientError.
	Stat(path localpath.LocalPath) (StatInfo, error)

	// Open acquires the OS handle for reading. async requests a handle
	// suitable for overlapped use on platforms that distinguish.
	Open(path localpath.LocalPath, async bool) error

	// Read fills dst from the open handle starting at pos. Short reads
	// are failures.
	Read(dst []byte, pos int64) error

	// Write stores src at pos through the open handle.
	Write(src []byte, pos int64) error

	// Close releases the OS handle. Harmless when none is open.
	Close() error

	// AsyncOpen, AsyncRead and AsyncWrite perform one asynchronous step
	// for the given context. The implementation has exclusive mutation
	// rights on the context until it calls Complete, which it must do
	// eventually — either before returning control or from a later
	// asynchronous completion.
	AsyncOpen(c *AsyncIOContext)
	AsyncRead(c *AsyncIOContext)
	AsyncWrite(c *AsyncIOContext)
}

// NoAsyncOps is the portable fallback for backends without asynchronous
// I/O facilities: every async operation completes immediately as a
// permanent, non-retryable failure. Embedding it documents the contract a
// real backend must satisfy rather than silently succeeding.
type NoAsyncOps struct{}

func (NoAsyncOps) AsyncOpen(c *AsyncIOContext)  { c.Complete(true, false) }
func (NoAsyncOps) AsyncRead(c *AsyncIOContext)  { c.Complete(true, false) }
func (NoAsyncOps) AsyncWrite(c *AsyncIOContext) { c.Complete(true, false) }
