//go:build !windows

package fsaccess

import (
	"golang.org/x/sys/unix"

	"github.com/openmirror/localfs/pkg/localpath"
)

// FsFingerprint identifies the filesystem behind path so that a watch
// root moving to a different volume can be detected across restarts.
// Zero means the identity could not be determined.
func (fs *FileSystemAccess) FsFingerprint(path localpath.LocalPath) uint64 {
	var st unix.Statfs_t
	if err := unix.Statfs(string(path.Bytes()), &st); err != nil {
		return 0
	}
	return uint64(uint32(st.Fsid.Val[0]))<<32 | uint64(uint32(st.Fsid.Val[1]))
}

// FsStableIDs reports whether inode numbers under path survive a
// rename. Local Unix filesystems keep them stable.
func (fs *FileSystemAccess) FsStableIDs(path localpath.LocalPath) bool {
	return true
}
