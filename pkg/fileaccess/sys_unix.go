//go:build !windows

package fileaccess

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/openmirror/localfs/pkg/localpath"
)

// UnixOps is the POSIX SysOps backend. Its asynchronous hooks complete
// synchronously before returning control, which satisfies the cooperative
// contract: the completion wake is delivered before the issuer can park.
type UnixOps struct {
	fd     int
	opened bool
}

// NewPlatformOps returns the SysOps backend for the running OS.
func NewPlatformOps() SysOps {
	return &UnixOps{fd: -1}
}

// classifyErr wraps retry-worthy errno values in TransientError.
func classifyErr(op string, err error) error {
	switch err {
	case unix.EAGAIN, unix.EINTR, unix.EBUSY, unix.ETXTBSY:
		return &TransientError{Err: fmt.Errorf("%s: %w", op, err)}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (o *UnixOps) Stat(path localpath.LocalPath) (StatInfo, error) {
	var st unix.Stat_t
	if err := unix.Lstat(string(path.Bytes()), &st); err != nil {
		return StatInfo{}, classifyErr("lstat", err)
	}

	info := StatInfo{
		Size:  int64(st.Size),
		MTime: int64(st.Mtim.Sec),
		// The inode is a stable per-filesystem identity on POSIX.
		FSID:      uint64(st.Ino),
		FSIDValid: true,
	}
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		info.Type = TypeFile
	case unix.S_IFDIR:
		info.Type = TypeFolder
	default:
		info.Type = TypeOther
	}
	return info, nil
}

func (o *UnixOps) Open(path localpath.LocalPath, async bool) error {
	fd, err := unix.Open(string(path.Bytes()), unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return classifyErr("open", err)
	}
	o.fd = fd
	o.opened = true
	return nil
}

func (o *UnixOps) Read(dst []byte, pos int64) error {
	if !o.opened {
		return fmt.Errorf("read: handle not open")
	}
	for len(dst) > 0 {
		n, err := unix.Pread(o.fd, dst, pos)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return classifyErr("pread", err)
		}
		if n == 0 {
			return fmt.Errorf("pread: short read at %d", pos)
		}
		dst = dst[n:]
		pos += int64(n)
	}
	return nil
}

func (o *UnixOps) Write(src []byte, pos int64) error {
	if !o.opened {
		return fmt.Errorf("write: handle not open")
	}
	for len(src) > 0 {
		n, err := unix.Pwrite(o.fd, src, pos)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return classifyErr("pwrite", err)
		}
		src = src[n:]
		pos += int64(n)
	}
	return nil
}

func (o *UnixOps) Close() error {
	if !o.opened {
		return nil
	}
	o.opened = false
	fd := o.fd
	o.fd = -1
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// openForAccess maps an async access bitset onto open flags. Write access
// creates the target when missing, matching download-to-disk use.
func (o *UnixOps) openForAccess(path localpath.LocalPath, access Access) error {
	flags := unix.O_CLOEXEC
	switch {
	case access&AccessWrite != 0 && access&AccessRead != 0:
		flags |= unix.O_RDWR | unix.O_CREAT
	case access&AccessWrite != 0:
		flags |= unix.O_WRONLY | unix.O_CREAT
	default:
		flags |= unix.O_RDONLY
	}
	fd, err := unix.Open(string(path.Bytes()), flags, 0644)
	if err != nil {
		return classifyErr("open", err)
	}
	o.fd = fd
	o.opened = true
	return nil
}

func (o *UnixOps) AsyncOpen(c *AsyncIOContext) {
	err := o.openForAccess(c.Path, c.Access)
	c.Complete(err != nil, IsTransient(err))
}

func (o *UnixOps) AsyncRead(c *AsyncIOContext) {
	err := o.Read(c.Buffer[:c.Len], c.Pos)
	c.Complete(err != nil, IsTransient(err))
}

func (o *UnixOps) AsyncWrite(c *AsyncIOContext) {
	err := o.Write(c.Buffer[:c.Len], c.Pos)
	c.Complete(err != nil, IsTransient(err))
}
