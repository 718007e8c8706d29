package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmirror/localfs/pkg/fileaccess"
	"github.com/openmirror/localfs/pkg/fsaccess"
	"github.com/openmirror/localfs/pkg/localpath"
	"github.com/openmirror/localfs/pkg/waiter"
)

func writeTree(t *testing.T, base string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(base, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func capture(t *testing.T, base string) *Snapshot {
	t.Helper()
	fs := fsaccess.New(waiter.New())
	s, err := Capture(fs, localpath.FromLocal([]byte(base)))
	if err != nil {
		t.Fatalf("Capture() failed: %v", err)
	}
	return s
}

func TestCapture(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{
		"a.txt":         "alpha",
		"sub/b.txt":     "beta",
		"sub/deep/c.md": "gamma",
	})

	s := capture(t, base)
	if len(s.Entries) != 5 { // 3 files + 2 directories
		t.Fatalf("captured %d entries, want 5: %v", len(s.Entries), s.Entries)
	}

	a, ok := s.Entries["a.txt"]
	if !ok {
		t.Fatal("a.txt missing from snapshot")
	}
	if a.Type != fileaccess.TypeFile || a.Size != 5 {
		t.Errorf("a.txt = type %v size %d, want file 5", a.Type, a.Size)
	}
	if !a.Fingerprint.Valid {
		t.Error("a.txt fingerprint not valid")
	}

	sub, ok := s.Entries["sub"]
	if !ok {
		t.Fatal("sub missing from snapshot")
	}
	if sub.Type != fileaccess.TypeFolder {
		t.Errorf("sub type = %v, want folder", sub.Type)
	}
	if sub.Fingerprint.Valid {
		t.Error("directory carries a valid fingerprint")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, format := range []Format{Gzip, Zstd} {
		t.Run(string(format), func(t *testing.T) {
			base := t.TempDir()
			writeTree(t, base, map[string]string{"f.txt": "content"})
			s := capture(t, base)

			st, err := NewStore(t.TempDir(), format)
			if err != nil {
				t.Fatalf("NewStore() failed: %v", err)
			}
			if err := st.Save("root", s); err != nil {
				t.Fatalf("Save() failed: %v", err)
			}

			loaded, err := st.Load("root")
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if loaded.Version != FormatVersion {
				t.Errorf("version = %q, want %q", loaded.Version, FormatVersion)
			}
			if loaded.Base != s.Base {
				t.Errorf("base = %q, want %q", loaded.Base, s.Base)
			}
			if d := Diff(s, loaded); !d.Empty() {
				t.Errorf("loaded snapshot differs from saved: %+v", d)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	st, err := NewStore(t.TempDir(), Gzip)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load("absent"); !os.IsNotExist(err) {
		t.Errorf("Load(absent) error = %v, want not-exist", err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	st, err := NewStore(t.TempDir(), Gzip)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(st.Path("bad"), []byte("not gzip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load("bad"); err == nil {
		t.Error("Load() of a corrupt snapshot did not fail")
	}
}

func TestSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir, Gzip)
	if err != nil {
		t.Fatal(err)
	}

	base := t.TempDir()
	writeTree(t, base, map[string]string{"f.txt": "one"})
	if err := st.Save("root", capture(t, base)); err != nil {
		t.Fatal(err)
	}
	if err := st.Save("root", capture(t, base)); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}

	// No temp litter may remain after successful saves.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("store dir contains %v, want only the snapshot", names)
	}
}

func TestRemove(t *testing.T) {
	st, err := NewStore(t.TempDir(), Zstd)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Remove("absent"); err != nil {
		t.Errorf("Remove(absent) = %v, want nil", err)
	}
}

func TestDiff(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{
		"keep.txt":   "same",
		"change.txt": "before",
		"gone.txt":   "bye",
	})
	prev := capture(t, base)

	if err := os.Remove(filepath.Join(base, "gone.txt")); err != nil {
		t.Fatal(err)
	}
	// Push the mtime to make the change visible even at second
	// granularity.
	if err := os.WriteFile(filepath.Join(base, "change.txt"), []byte("after!!"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-10 * time.Second)
	if err := os.Chtimes(filepath.Join(base, "change.txt"), past, past); err != nil {
		t.Fatal(err)
	}
	writeTree(t, base, map[string]string{"new.txt": "hi"})
	cur := capture(t, base)

	c := Diff(prev, cur)
	if len(c.Added) != 1 || c.Added[0] != "new.txt" {
		t.Errorf("Added = %v, want [new.txt]", c.Added)
	}
	if len(c.Removed) != 1 || c.Removed[0] != "gone.txt" {
		t.Errorf("Removed = %v, want [gone.txt]", c.Removed)
	}
	if len(c.Modified) != 1 || c.Modified[0] != "change.txt" {
		t.Errorf("Modified = %v, want [change.txt]", c.Modified)
	}
}

func TestDiffIdentical(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{"f.txt": "stable"})
	prev := capture(t, base)
	cur := capture(t, base)
	if c := Diff(prev, cur); !c.Empty() {
		t.Errorf("Diff of identical trees = %+v, want empty", c)
	}
}
