// Package snapshot persists the observed state of a watch root so the
// next run can tell what changed while the process was down.
package snapshot

import (
	"os"
	"path/filepath"
	"time"

	"github.com/openmirror/localfs/pkg/fileaccess"
	"github.com/openmirror/localfs/pkg/fingerprint"
	"github.com/openmirror/localfs/pkg/fsaccess"
	"github.com/openmirror/localfs/pkg/localpath"
	"github.com/openmirror/localfs/pkg/plog"
)

// FormatVersion is bumped when the snapshot schema changes shape.
const FormatVersion = "1"

// Entry records one path's identity at capture time.
type Entry struct {
	Type        fileaccess.Type         `json:"type"`
	Size        int64                   `json:"size,omitempty"`
	MTime       int64                   `json:"mtime,omitempty"`
	FSID        uint64                  `json:"fsid,omitempty"`
	FSIDValid   bool                    `json:"fsidValid,omitempty"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint,omitzero"`
}

// Snapshot is the captured state of one watch root. Keys are paths
// relative to Base in local encoding.
type Snapshot struct {
	Version       string           `json:"version"`
	TakenUTC      time.Time        `json:"takenUTC"`
	Base          string           `json:"base"`
	FsFingerprint uint64           `json:"fsFingerprint,omitempty"`
	Entries       map[string]Entry `json:"entries"`
}

// Capture walks base and records every entry's identity. Files are
// fingerprinted; entries that vanish mid-walk are skipped. The walk
// does not follow symlinks.
func Capture(fs *fsaccess.FileSystemAccess, base localpath.LocalPath) (*Snapshot, error) {
	s := &Snapshot{
		Version:       FormatVersion,
		TakenUTC:      time.Now().UTC(),
		Base:          fs.Local2Path(base),
		FsFingerprint: fs.FsFingerprint(base),
		Entries:       make(map[string]Entry),
	}
	if err := captureDir(fs, base, base, s); err != nil {
		return nil, err
	}
	return s, nil
}

func captureDir(fs *fsaccess.FileSystemAccess, base, dir localpath.LocalPath, s *Snapshot) error {
	entries, err := os.ReadDir(fs.Local2Path(dir))
	if err != nil {
		return err
	}

	for _, e := range entries {
		abs := localpath.FromLocal([]byte(filepath.Join(fs.Local2Path(dir), e.Name())))

		fa := fs.NewFileAccess()
		if !fa.FOpen(abs) {
			// Deleted between readdir and stat; the next capture has it.
			plog.Debug("Skipping vanished entry", "path", string(abs.Bytes()))
			continue
		}

		rel := abs.SubpathFrom(min(abs.Len(), base.Len()+len(fs.Sep)))
		entry := Entry{
			Type:      fa.Type,
			Size:      fa.Size,
			MTime:     fa.MTime,
			FSID:      fa.FSID,
			FSIDValid: fa.FSIDValid,
		}
		if fa.Type == fileaccess.TypeFile {
			entry.Fingerprint = fingerprint.Generate(fa)
		}
		s.Entries[string(rel.Bytes())] = entry

		if fa.Type == fileaccess.TypeFolder {
			if err := captureDir(fs, base, abs, s); err != nil {
				return err
			}
		}
	}
	return nil
}

// Changes is the outcome of comparing two snapshots.
type Changes struct {
	Added    []string
	Removed  []string
	Modified []string
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// Diff compares prev against cur, keyed by relative path. An entry is
// modified when type, size, mtime or fingerprint moved; a filesystem
// identity change on an otherwise equal entry counts too, unless either
// side lacks stable ids.
func Diff(prev, cur *Snapshot) Changes {
	var c Changes

	for rel, p := range prev.Entries {
		n, ok := cur.Entries[rel]
		if !ok {
			c.Removed = append(c.Removed, rel)
			continue
		}
		if entryChanged(p, n) {
			c.Modified = append(c.Modified, rel)
		}
	}
	for rel := range cur.Entries {
		if _, ok := prev.Entries[rel]; !ok {
			c.Added = append(c.Added, rel)
		}
	}
	return c
}

func entryChanged(p, n Entry) bool {
	if p.Type != n.Type {
		return true
	}
	if p.Type == fileaccess.TypeFile {
		if p.Size != n.Size || p.MTime != n.MTime {
			return true
		}
		if p.Fingerprint.Valid && n.Fingerprint.Valid && !p.Fingerprint.Equal(n.Fingerprint) {
			return true
		}
	}
	if p.FSIDValid && n.FSIDValid && p.FSID != n.FSID {
		return true
	}
	return false
}
