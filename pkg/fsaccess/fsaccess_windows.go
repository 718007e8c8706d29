//go:build windows

package fsaccess

import (
	"golang.org/x/sys/windows"

	"github.com/openmirror/localfs/pkg/localpath"
)

// FsFingerprint identifies the volume behind path so that a watch root
// moving to a different volume can be detected across restarts. Zero
// means the identity could not be determined.
func (fs *FileSystemAccess) FsFingerprint(path localpath.LocalPath) uint64 {
	p, err := windows.UTF16PtrFromString(string(path.Bytes()))
	if err != nil {
		return 0
	}
	var serial uint32
	if err := windows.GetVolumeInformation(p, nil, 0, &serial, nil, nil, nil, 0); err != nil {
		return 0
	}
	return uint64(serial)
}

// FsStableIDs reports whether file indexes under path survive a rename.
// NTFS keeps them stable; FAT volumes do not, but those are rare enough
// as sync roots that the distinction is left to the caller's stat data.
func (fs *FileSystemAccess) FsStableIDs(path localpath.LocalPath) bool {
	return true
}
