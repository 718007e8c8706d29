//go:build windows

package fileaccess

import (
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/openmirror/localfs/pkg/localpath"
)

// WindowsOps is the Windows SysOps backend. Its asynchronous hooks
// complete synchronously before returning control, which satisfies the
// cooperative contract.
type WindowsOps struct {
	h      windows.Handle
	opened bool
}

// NewPlatformOps returns the SysOps backend for the running OS.
func NewPlatformOps() SysOps {
	return &WindowsOps{h: windows.InvalidHandle}
}

// classifyErr wraps retry-worthy Windows errors in TransientError.
func classifyErr(op string, err error) error {
	switch err {
	case windows.ERROR_SHARING_VIOLATION, windows.ERROR_LOCK_VIOLATION, windows.ERROR_TOO_MANY_OPEN_FILES:
		return &TransientError{Err: fmt.Errorf("%s: %w", op, err)}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (o *WindowsOps) Stat(path localpath.LocalPath) (StatInfo, error) {
	p, err := windows.UTF16PtrFromString(string(path.Bytes()))
	if err != nil {
		return StatInfo{}, fmt.Errorf("stat: %w", err)
	}

	// Access 0 queries attributes without requiring read access; backup
	// semantics is required to open directories.
	h, err := windows.CreateFile(p, 0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return StatInfo{}, classifyErr("stat", err)
	}
	defer windows.CloseHandle(h)

	var fi windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &fi); err != nil {
		return StatInfo{}, classifyErr("stat", err)
	}

	info := StatInfo{
		Size:  int64(fi.FileSizeHigh)<<32 | int64(fi.FileSizeLow),
		MTime: fi.LastWriteTime.Nanoseconds() / 1e9,
		// The volume file index is stable on NTFS.
		FSID:      uint64(fi.FileIndexHigh)<<32 | uint64(fi.FileIndexLow),
		FSIDValid: true,
	}
	switch {
	case fi.FileAttributes&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0:
		info.Type = TypeOther
	case fi.FileAttributes&windows.FILE_ATTRIBUTE_DIRECTORY != 0:
		info.Type = TypeFolder
	default:
		info.Type = TypeFile
	}
	return info, nil
}

func (o *WindowsOps) open(path localpath.LocalPath, access uint32, createmode uint32) error {
	p, err := windows.UTF16PtrFromString(string(path.Bytes()))
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	h, err := windows.CreateFile(p, access,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, createmode, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return classifyErr("open", err)
	}
	o.h = h
	o.opened = true
	return nil
}

func (o *WindowsOps) Open(path localpath.LocalPath, async bool) error {
	return o.open(path, windows.GENERIC_READ, windows.OPEN_EXISTING)
}

func (o *WindowsOps) Read(dst []byte, pos int64) error {
	if !o.opened {
		return fmt.Errorf("read: handle not open")
	}
	for len(dst) > 0 {
		ov := windows.Overlapped{
			Offset:     uint32(pos),
			OffsetHigh: uint32(pos >> 32),
		}
		var done uint32
		if err := windows.ReadFile(o.h, dst, &done, &ov); err != nil {
			return classifyErr("read", err)
		}
		if done == 0 {
			return fmt.Errorf("read: short read at %d", pos)
		}
		dst = dst[done:]
		pos += int64(done)
	}
	return nil
}

func (o *WindowsOps) Write(src []byte, pos int64) error {
	if !o.opened {
		return fmt.Errorf("write: handle not open")
	}
	for len(src) > 0 {
		ov := windows.Overlapped{
			Offset:     uint32(pos),
			OffsetHigh: uint32(pos >> 32),
		}
		var done uint32
		if err := windows.WriteFile(o.h, src, &done, &ov); err != nil {
			return classifyErr("write", err)
		}
		src = src[done:]
		pos += int64(done)
	}
	return nil
}

func (o *WindowsOps) Close() error {
	if !o.opened {
		return nil
	}
	o.opened = false
	h := o.h
	o.h = windows.InvalidHandle
	if err := windows.CloseHandle(h); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func (o *WindowsOps) AsyncOpen(c *AsyncIOContext) {
	access := uint32(0)
	createmode := uint32(windows.OPEN_EXISTING)
	if c.Access&AccessRead != 0 {
		access |= windows.GENERIC_READ
	}
	if c.Access&AccessWrite != 0 {
		access |= windows.GENERIC_WRITE
		createmode = windows.OPEN_ALWAYS
	}
	err := o.open(c.Path, access, createmode)
	c.Complete(err != nil, IsTransient(err))
}

func (o *WindowsOps) AsyncRead(c *AsyncIOContext) {
	err := o.Read(c.Buffer[:c.Len], c.Pos)
	c.Complete(err != nil, IsTransient(err))
}

func (o *WindowsOps) AsyncWrite(c *AsyncIOContext) {
	err := o.Write(c.Buffer[:c.Len], c.Pos)
	c.Complete(err != nil, IsTransient(err))
}
