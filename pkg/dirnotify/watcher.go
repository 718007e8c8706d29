package dirnotify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/openmirror/localfs/pkg/localpath"
	"github.com/openmirror/localfs/pkg/plog"
	"github.com/openmirror/localfs/pkg/sharded"
)

// watcher is the fsnotify backend behind a DirNotify. The OS watch
// primitive is per-directory, so it maintains a registry of watched
// directories and extends it when directories appear inside the tree.
type watcher struct {
	owner *DirNotify
	fsw   *fsnotify.Watcher

	// watched tracks the directories currently under watch, keyed by
	// absolute path. The event goroutine and watchTree both touch it.
	watched *sharded.Set

	closeOnce sync.Once
	done      chan struct{}
}

func newWatcher(owner *DirNotify) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("dirnotify: creating watch backend: %w", err)
	}
	w := &watcher{
		owner:   owner,
		fsw:     fsw,
		watched: sharded.NewSet(16),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *watcher) close() {
	w.closeOnce.Do(func() {
		close(w.done)
		if err := w.fsw.Close(); err != nil {
			plog.Warn("Closing watch backend failed", "error", err)
		}
	})
}

// watchTree establishes watches on root and every directory below it.
// Files inside a watched directory report through their parent, so only
// directories enter the registry.
func (w *watcher) watchTree(root localpath.LocalPath) error {
	dir := string(root.Bytes())
	if err := w.watchDir(dir); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("dirnotify: reading %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := localpath.FromLocal([]byte(filepath.Join(dir, e.Name())))
		if err := w.watchTree(sub); err != nil {
			// The subtree may be disappearing while we walk it; the
			// events for that are already on their way.
			plog.Debug("Skipping unwatchable subtree", "path", string(sub.Bytes()), "error", err)
		}
	}
	return nil
}

func (w *watcher) watchDir(dir string) error {
	if w.watched.LoadOrStore(dir) {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		w.watched.Delete(dir)
		return fmt.Errorf("dirnotify: watching %s: %w", dir, err)
	}
	return nil
}

// run drains the backend's channels until close. All queue interaction
// goes through the owner, which serializes it.
func (w *watcher) run() {
	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.owner.overflowed()
				continue
			}
			plog.Warn("Watch backend error", "error", err)
			w.owner.SetFailed(1, err.Error())
		}
	}
}

func (w *watcher) handleEvent(ev fsnotify.Event) {
	// A directory created inside the tree needs its own watch before
	// anything inside it can report. Content that raced in before the
	// watch stood is picked up by the engine's scan of the new
	// directory.
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Lstat(ev.Name); err == nil && fi.IsDir() {
			if err := w.watchTree(localpath.FromLocal([]byte(ev.Name))); err != nil {
				plog.Warn("Extending watch failed", "path", ev.Name, "error", err)
				w.owner.SetFailed(1, err.Error())
			}
		}
	}

	// The OS drops watches on deleted directories; keep the registry in
	// step so a later directory of the same name re-registers.
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.watched.Delete(ev.Name)
	}

	w.owner.fsEventReceived(localpath.FromLocal([]byte(ev.Name)))
}
