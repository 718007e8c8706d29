package cmd

import (
	"fmt"

	"github.com/openmirror/localfs/pkg/flagparse"
	"github.com/openmirror/localfs/pkg/fsaccess"
	"github.com/openmirror/localfs/pkg/plog"
	"github.com/openmirror/localfs/pkg/snapshot"
	"github.com/openmirror/localfs/pkg/waiter"
)

// RunSnapshot captures the current state of a directory tree and stores
// it under the given name.
func RunSnapshot(opts *flagparse.SnapshotOptions) error {
	if err := applyLogLevel(opts.LogLevel); err != nil {
		return err
	}
	format, err := snapshotFormat(opts.SnapshotFormat)
	if err != nil {
		return err
	}

	fs := fsaccess.New(waiter.New())
	root := fs.Path2Local(opts.Root)
	if !fs.NewFileAccess().IsFolder(root) {
		return fmt.Errorf("snapshot root %s is not a directory", opts.Root)
	}

	store, err := snapshot.NewStore(opts.SnapshotDir, format)
	if err != nil {
		return err
	}

	s, err := snapshot.Capture(fs, root)
	if err != nil {
		return fmt.Errorf("capturing %s: %w", opts.Root, err)
	}
	if err := store.Save(opts.Name, s); err != nil {
		return err
	}

	plog.Info("Snapshot captured", "name", opts.Name, "entries", len(s.Entries), "path", store.Path(opts.Name))
	return nil
}
