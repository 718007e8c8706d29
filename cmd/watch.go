package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/openmirror/localfs/pkg/dirnotify"
	"github.com/openmirror/localfs/pkg/flagparse"
	"github.com/openmirror/localfs/pkg/fsaccess"
	"github.com/openmirror/localfs/pkg/localpath"
	"github.com/openmirror/localfs/pkg/plog"
	"github.com/openmirror/localfs/pkg/snapshot"
	"github.com/openmirror/localfs/pkg/waiter"
)

// RunWatch watches a directory tree and reports changes until ctx is
// cancelled. With a snapshot dir configured it also reports what
// changed since the previous run on startup, and captures a fresh
// snapshot on shutdown.
func RunWatch(ctx context.Context, opts *flagparse.WatchOptions) error {
	if err := applyLogLevel(opts.LogLevel); err != nil {
		return err
	}

	w := waiter.New()
	fs := fsaccess.New(w)

	root := fs.Path2Local(opts.Root)
	if !fs.NewFileAccess().IsFolder(root) {
		return fmt.Errorf("watch root %s is not a directory", opts.Root)
	}

	var store *snapshot.Store
	if opts.SnapshotDir != "" {
		format, err := snapshotFormat(opts.SnapshotFormat)
		if err != nil {
			return err
		}
		store, err = snapshot.NewStore(opts.SnapshotDir, format)
		if err != nil {
			return err
		}
		reportRestartChanges(fs, store, root)
	}

	var metrics dirnotify.Metrics = &dirnotify.NoopMetrics{}
	var counters *dirnotify.NotifyMetrics
	if opts.Metrics {
		counters = &dirnotify.NotifyMetrics{}
		metrics = counters
	}

	var ignore localpath.LocalPath
	if opts.Ignore != "" {
		ignore = fs.Path2Local(opts.Ignore)
	}

	notify, err := dirnotify.New(dirnotify.Config{
		Base:          root,
		Ignore:        ignore,
		Sep:           fs.Sep,
		SelfNotify:    fs.SelfNotifyFiltering,
		NewFileAccess: fs.NewFileAccess,
		Waiter:        w,
		Metrics:       metrics,
	})
	if err != nil {
		return err
	}
	defer notify.Close()

	plog.Info("Watching", "root", opts.Root, "debounce_ds", opts.DebounceDs)

	for {
		select {
		case <-ctx.Done():
			plog.Info("Shutting down")
			if counters != nil {
				counters.LogSummary("Watch summary")
			}
			if store != nil {
				return saveSnapshot(fs, store, root)
			}
			return nil
		default:
		}

		w.WaitTimeout(100 * time.Millisecond)

		if code, reason := notify.Failed(); code != 0 {
			plog.Warn("Notifications incomplete, a full rescan is required", "reason", reason)
		}

		due := max(waiter.Ds()-opts.DebounceDs, 0)
		for {
			n, ok := notify.PopReady(dirnotify.DirEvents, due)
			if !ok {
				break
			}
			plog.Info("Change", "path", string(n.Path.Bytes()))
		}
	}
}

// reportRestartChanges compares the stored snapshot against the live
// tree and reports what moved while the watcher was down.
func reportRestartChanges(fs *fsaccess.FileSystemAccess, store *snapshot.Store, root localpath.LocalPath) {
	prev, err := store.Load("root")
	if err != nil {
		// First run or unreadable snapshot: nothing to compare yet.
		plog.Debug("No previous snapshot", "error", err)
		return
	}
	if fp := fs.FsFingerprint(root); fp != 0 && prev.FsFingerprint != 0 && fp != prev.FsFingerprint {
		plog.Warn("Watch root is on a different filesystem than last run",
			"was", prev.FsFingerprint, "now", fp)
		return
	}

	cur, err := snapshot.Capture(fs, root)
	if err != nil {
		plog.Warn("Capturing restart state failed", "error", err)
		return
	}

	changes := snapshot.Diff(prev, cur)
	if changes.Empty() {
		plog.Info("No changes since last run")
		return
	}
	plog.Info("Changes since last run",
		"added", len(changes.Added), "removed", len(changes.Removed), "modified", len(changes.Modified))
	for _, p := range changes.Added {
		plog.Notice("ADDED", "path", p)
	}
	for _, p := range changes.Removed {
		plog.Notice("REMOVED", "path", p)
	}
	for _, p := range changes.Modified {
		plog.Notice("MODIFIED", "path", p)
	}
}

func saveSnapshot(fs *fsaccess.FileSystemAccess, store *snapshot.Store, root localpath.LocalPath) error {
	s, err := snapshot.Capture(fs, root)
	if err != nil {
		return fmt.Errorf("capturing shutdown snapshot: %w", err)
	}
	if err := store.Save("root", s); err != nil {
		return err
	}
	plog.Info("Snapshot saved", "entries", len(s.Entries))
	return nil
}
