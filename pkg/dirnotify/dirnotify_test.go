package dirnotify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmirror/localfs/pkg/fileaccess"
	"github.com/openmirror/localfs/pkg/fingerprint"
	"github.com/openmirror/localfs/pkg/localpath"
	"github.com/openmirror/localfs/pkg/waiter"
)

// fakeNode and fakeTree stand in for the sync engine's tree.
type fakeNode struct {
	path   localpath.LocalPath
	name   string
	fp     fingerprint.Fingerprint
	cached Cached
	synced bool
}

func (n *fakeNode) LocalPath() localpath.LocalPath       { return n.path }
func (n *fakeNode) Name() string                         { return n.name }
func (n *fakeNode) Fingerprint() fingerprint.Fingerprint { return n.fp }
func (n *fakeNode) Cached() (Cached, bool)               { return n.cached, n.synced }

type fakeTree struct {
	initializing bool
	nodes        map[string]*fakeNode // keyed by relative path
}

func (t *fakeTree) Initializing() bool { return t.initializing }

func (t *fakeTree) Lookup(base Node, rel localpath.LocalPath) (Node, bool) {
	n, ok := t.nodes[string(rel.Bytes())]
	if !ok {
		return nil, false
	}
	return n, true
}

func lp(s string) localpath.LocalPath {
	return localpath.FromLocal([]byte(s))
}

func newNotifier(t *testing.T, cfg Config) *DirNotify {
	t.Helper()
	if cfg.Base.Empty() {
		cfg.Base = lp(t.TempDir())
	}
	if cfg.Waiter == nil {
		cfg.Waiter = waiter.New()
	}
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(n.Close)
	return n
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Waiter: waiter.New()}); err == nil {
		t.Error("New() without base did not fail")
	}
	if _, err := New(Config{Base: lp(t.TempDir())}); err == nil {
		t.Error("New() without waiter did not fail")
	}
	if _, err := New(Config{Base: lp("/nonexistent/watch/root"), Waiter: waiter.New()}); err == nil {
		t.Error("New() on a missing root did not fail")
	}
}

func TestNewBecomesHealthy(t *testing.T) {
	n := newNotifier(t, Config{})
	if code, reason := n.Failed(); code != 0 {
		t.Errorf("Failed() = %d %q after successful start, want healthy", code, reason)
	}
}

func TestNotifyDedup(t *testing.T) {
	m := &NotifyMetrics{}
	n := newNotifier(t, Config{Metrics: m})

	n.Notify(Extra, nil, lp("a/b"), false)
	n.Notify(Extra, nil, lp("a/b"), false)
	if got := n.Pending(Extra); got != 1 {
		t.Errorf("Pending() = %d after duplicate notify, want 1", got)
	}
	if got := m.EventsDeduped.Load(); got != 1 {
		t.Errorf("deduped counter = %d, want 1", got)
	}

	// A different path does not collapse.
	n.Notify(Extra, nil, lp("a/c"), false)
	if got := n.Pending(Extra); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}

	// Nor does the same path when it is no longer the tail.
	n.Notify(Extra, nil, lp("a/b"), false)
	if got := n.Pending(Extra); got != 3 {
		t.Errorf("Pending() = %d, want 3", got)
	}
}

func TestNotifyImmediatePromotesTail(t *testing.T) {
	n := newNotifier(t, Config{})

	n.Notify(DirEvents, nil, lp("f"), false)
	n.Notify(DirEvents, nil, lp("f"), true)
	if got := n.Pending(DirEvents); got != 1 {
		t.Fatalf("Pending() = %d, want collapsed 1", got)
	}

	// The collapsed entry must now be due immediately.
	got, ok := n.PopReady(DirEvents, 0)
	if !ok {
		t.Fatal("PopReady(now=0) = false, want immediate entry")
	}
	if got.Timestamp != 0 {
		t.Errorf("timestamp = %d, want 0", got.Timestamp)
	}
}

func TestImmediateStaysImmediate(t *testing.T) {
	n := newNotifier(t, Config{})

	// A later duplicate must not push an immediate entry back into the
	// debounce window.
	n.Notify(DirEvents, nil, lp("f"), true)
	n.Notify(DirEvents, nil, lp("f"), false)
	if _, ok := n.PopReady(DirEvents, 0); !ok {
		t.Error("immediate entry lost its immediacy after a duplicate")
	}
}

func TestPopReadyDebounce(t *testing.T) {
	n := newNotifier(t, Config{})

	n.Notify(DirEvents, nil, lp("f"), false)
	if _, ok := n.PopReady(DirEvents, 0); ok {
		t.Error("PopReady(now=0) popped an entry queued just now")
	}
	if got, ok := n.PopReady(DirEvents, waiter.Ds()); !ok {
		t.Error("PopReady(now) = false for a due entry")
	} else if string(got.Path.Bytes()) != "f" {
		t.Errorf("popped path = %q, want f", got.Path.Bytes())
	}
}

func TestPopReadyFIFO(t *testing.T) {
	n := newNotifier(t, Config{})

	n.Notify(DirEvents, nil, lp("first"), true)
	n.Notify(DirEvents, nil, lp("second"), false)

	got, ok := n.PopReady(DirEvents, 0)
	if !ok || string(got.Path.Bytes()) != "first" {
		t.Fatalf("first pop = %q %v, want first", got.Path.Bytes(), ok)
	}
	// The second entry is not yet due: FIFO means nothing else may come
	// out either.
	if _, ok := n.PopReady(DirEvents, 0); ok {
		t.Error("undue head was overtaken")
	}
}

func TestOverflowDegradesHealth(t *testing.T) {
	m := &NotifyMetrics{}
	n := newNotifier(t, Config{Metrics: m})

	n.overflowed()
	code, reason := n.Failed()
	if code == 0 {
		t.Fatal("Failed() = healthy after an overflow")
	}
	if reason != "event overflow" {
		t.Errorf("reason = %q, want event overflow", reason)
	}
	if got := m.Overflows.Load(); got != 1 {
		t.Errorf("overflow counter = %d, want 1", got)
	}
}

func TestIgnorePathFiltering(t *testing.T) {
	base := t.TempDir()
	m := &NotifyMetrics{}
	n := newNotifier(t, Config{
		Base:    lp(base),
		Ignore:  lp(filepath.Join(base, ".debris")),
		Metrics: m,
	})

	n.fsEventReceived(lp(filepath.Join(base, ".debris", "tmp1")))
	if got := n.Pending(DirEvents); got != 0 {
		t.Errorf("Pending() = %d for an ignored path, want 0", got)
	}
	if got := m.EventsIgnored.Load(); got != 1 {
		t.Errorf("ignored counter = %d, want 1", got)
	}

	n.fsEventReceived(lp(filepath.Join(base, "kept")))
	if got := n.Pending(DirEvents); got != 1 {
		t.Errorf("Pending() = %d for a regular path, want 1", got)
	}
}

func TestEventOutsideBaseDropped(t *testing.T) {
	n := newNotifier(t, Config{Base: lp(t.TempDir())})
	n.fsEventReceived(lp("/somewhere/else"))
	if got := n.Pending(DirEvents); got != 0 {
		t.Errorf("Pending() = %d for a foreign path, want 0", got)
	}
}

// statFile opens path through the platform backend so the test can build
// a cached record matching the file exactly.
func statFile(t *testing.T, path string) (*fileaccess.FileAccess, fingerprint.Fingerprint) {
	t.Helper()
	fa := fileaccess.New(fileaccess.NewPlatformOps(), waiter.New())
	if !fa.FOpen(lp(path)) {
		t.Fatalf("FOpen(%s) failed", path)
	}
	return fa, fingerprint.Generate(fa)
}

func TestSelfNotificationSuppression(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "synced.txt")
	if err := os.WriteFile(file, []byte("synced content"), 0o644); err != nil {
		t.Fatal(err)
	}

	fa, fp := statFile(t, file)
	node := &fakeNode{
		path:   lp(file),
		name:   "synced.txt",
		fp:     fp,
		synced: true,
		cached: Cached{
			Name:        "synced.txt",
			Fingerprint: fp,
			Type:        fa.Type,
			MTime:       fa.MTime,
			Size:        fa.Size,
			FSID:        fa.FSID,
			FSIDValid:   fa.FSIDValid,
		},
	}
	tree := &fakeTree{nodes: map[string]*fakeNode{"synced.txt": node}}

	m := &NotifyMetrics{}
	n := newNotifier(t, Config{
		Base:       lp(base),
		Tree:       tree,
		SelfNotify: true,
		NewFileAccess: func() *fileaccess.FileAccess {
			return fileaccess.New(fileaccess.NewPlatformOps(), waiter.New())
		},
		Metrics: m,
	})

	// An event exactly matching the synced state is ours: suppressed.
	n.fsEventReceived(lp(file))
	if got := n.Pending(DirEvents); got != 0 {
		t.Errorf("Pending() = %d for a self-notification, want 0", got)
	}
	if got := m.EventsSuppressed.Load(); got != 1 {
		t.Errorf("suppressed counter = %d, want 1", got)
	}

	// A size mismatch against the record means someone else wrote: the
	// event must pass.
	node.cached.Size++
	n.fsEventReceived(lp(file))
	if got := n.Pending(DirEvents); got != 1 {
		t.Errorf("Pending() = %d for a mismatching event, want 1", got)
	}
	node.cached.Size--

	// An unsynced node always passes.
	node.synced = false
	n.fsEventReceived(lp(file))
	if got := n.Pending(DirEvents); got != 2 {
		t.Errorf("Pending() = %d for an unsynced node, want 2", got)
	}
	node.synced = true
}

func TestSelfNotificationUnknownGonePath(t *testing.T) {
	base := t.TempDir()
	tree := &fakeTree{nodes: map[string]*fakeNode{}}
	n := newNotifier(t, Config{
		Base:       lp(base),
		Tree:       tree,
		SelfNotify: true,
		NewFileAccess: func() *fileaccess.FileAccess {
			return fileaccess.New(fileaccess.NewPlatformOps(), waiter.New())
		},
	})

	// Unknown to the tree and permanently gone from disk: a cleaned-up
	// temporary of ours, suppressed.
	n.fsEventReceived(lp(filepath.Join(base, "ghost.tmp")))
	if got := n.Pending(DirEvents); got != 0 {
		t.Errorf("Pending() = %d for a vanished unknown path, want 0", got)
	}

	// Unknown but present on disk: a foreign creation, passes.
	kept := filepath.Join(base, "foreign.txt")
	if err := os.WriteFile(kept, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	n.fsEventReceived(lp(kept))
	if got := n.Pending(DirEvents); got == 0 {
		t.Error("foreign creation was suppressed")
	}
}

func TestSelfNotificationDisabledDuringInit(t *testing.T) {
	base := t.TempDir()
	tree := &fakeTree{initializing: true, nodes: map[string]*fakeNode{}}
	n := newNotifier(t, Config{
		Base:       lp(base),
		Tree:       tree,
		SelfNotify: true,
		NewFileAccess: func() *fileaccess.FileAccess {
			return fileaccess.New(fileaccess.NewPlatformOps(), waiter.New())
		},
	})

	// While the tree is still building, nothing may be suppressed, even
	// a path that looks like a cleaned-up temporary.
	n.fsEventReceived(lp(filepath.Join(base, "ghost.tmp")))
	if got := n.Pending(DirEvents); got != 1 {
		t.Errorf("Pending() = %d during tree init, want 1", got)
	}
}

func TestWatcherDeliversEvents(t *testing.T) {
	base := t.TempDir()
	w := waiter.New()
	n := newNotifier(t, Config{Base: lp(base), Waiter: w})

	if err := os.WriteFile(filepath.Join(base, "new.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for n.Pending(DirEvents) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no notification arrived for a created file")
		}
		w.WaitTimeout(100 * time.Millisecond)
	}

	got, ok := n.PopReady(DirEvents, waiter.Ds())
	if !ok {
		t.Fatal("PopReady() = false for the delivered event")
	}
	if string(got.Path.Bytes()) != "new.txt" {
		t.Errorf("delivered path = %q, want new.txt", got.Path.Bytes())
	}
}

func TestWatcherExtendsToNewDirectories(t *testing.T) {
	base := t.TempDir()
	w := waiter.New()
	n := newNotifier(t, Config{Base: lp(base), Waiter: w})

	sub := filepath.Join(base, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	// Wait until the new directory itself reported, which also means
	// its watch is being established.
	deadline := time.Now().Add(5 * time.Second)
	for n.Pending(DirEvents) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no notification for the new directory")
		}
		w.WaitTimeout(100 * time.Millisecond)
	}
	for n.Pending(DirEvents) > 0 {
		n.PopReady(DirEvents, waiter.Ds())
	}

	// Give the extension a moment, then verify events inside the new
	// directory arrive.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline = time.Now().Add(5 * time.Second)
	for n.Pending(DirEvents) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no notification from inside the new directory")
		}
		w.WaitTimeout(100 * time.Millisecond)
	}
}
