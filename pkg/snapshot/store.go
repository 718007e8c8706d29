package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/singleflight"

	"github.com/openmirror/localfs/pkg/plog"
)

// Format selects the snapshot compression codec.
type Format string

const (
	Gzip Format = "gzip"
	Zstd Format = "zstd"
)

func (f Format) ext() string {
	if f == Zstd {
		return ".json.zst"
	}
	return ".json.gz"
}

// Store reads and writes snapshots under one directory. Writes go
// through a temp file and an atomic rename, so a crash mid-save never
// leaves a truncated snapshot behind. Concurrent loads of the same
// snapshot are collapsed into a single read.
type Store struct {
	dir    string
	format Format

	loads singleflight.Group
}

// NewStore creates a store writing format-encoded snapshots into dir,
// which is created if missing.
func NewStore(dir string, format Format) (*Store, error) {
	switch format {
	case Gzip, Zstd:
	default:
		return nil, fmt.Errorf("snapshot: unsupported format: %s", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: creating store dir: %w", err)
	}
	return &Store{dir: dir, format: format}, nil
}

// Path returns the on-disk location of the named snapshot.
func (st *Store) Path(name string) string {
	return filepath.Join(st.dir, name+st.format.ext())
}

// Save writes s under name, replacing any previous snapshot of that
// name atomically.
func (st *Store) Save(name string, s *Snapshot) (retErr error) {
	finalPath := st.Path(name)

	// Create the temp file next to the target to ensure atomic rename.
	targetF, err := os.CreateTemp(st.dir, "snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: creating temp file: %w", err)
	}
	tempName := targetF.Name()

	// Ensure cleanup on error
	defer func() {
		if retErr != nil {
			targetF.Close()
			os.Remove(tempName)
		}
	}()

	if err := st.encode(targetF, s); err != nil {
		return err
	}

	// Close explicitly to flush to disk before rename.
	if err := targetF.Close(); err != nil {
		return fmt.Errorf("snapshot: closing temp file: %w", err)
	}

	if err := os.Rename(tempName, finalPath); err != nil {
		return fmt.Errorf("snapshot: renaming temp file to final path: %w", err)
	}

	plog.Debug("Snapshot saved", "path", finalPath, "entries", len(s.Entries))
	return nil
}

func (st *Store) encode(targetF *os.File, s *Snapshot) (retErr error) {
	bufWriter := bufio.NewWriter(targetF)

	var compressedWriter io.WriteCloser
	switch st.format {
	case Zstd:
		zw, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("snapshot: creating zstd writer: %w", err)
		}
		compressedWriter = zw
	default:
		gw, err := pgzip.NewWriterLevel(bufWriter, pgzip.DefaultCompression)
		if err != nil {
			return fmt.Errorf("snapshot: creating gzip writer: %w", err)
		}
		compressedWriter = gw
	}

	// Robust cleanup
	defer func() {
		if err := compressedWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("snapshot: compressed writer close failed: %w", err)
		}
		if err := bufWriter.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("snapshot: buffer flush failed: %w", err)
		}
	}()

	if err := json.NewEncoder(compressedWriter).Encode(s); err != nil {
		return fmt.Errorf("snapshot: encoding: %w", err)
	}
	return nil
}

// Load reads the named snapshot. Concurrent callers asking for the same
// name share one underlying read.
func (st *Store) Load(name string) (*Snapshot, error) {
	v, err, _ := st.loads.Do(name, func() (any, error) {
		return st.load(name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (st *Store) load(name string) (*Snapshot, error) {
	path := st.Path(name)
	f, err := os.Open(path)
	if err != nil {
		// os.IsNotExist errors are handled by the caller.
		return nil, err
	}
	defer f.Close()

	var reader io.ReadCloser
	switch st.format {
	case Zstd:
		zr, err := zstd.NewReader(bufio.NewReader(f))
		if err != nil {
			return nil, fmt.Errorf("snapshot: creating zstd reader: %w", err)
		}
		defer zr.Close()
		reader = zr.IOReadCloser()
	default:
		gr, err := pgzip.NewReader(bufio.NewReader(f))
		if err != nil {
			return nil, fmt.Errorf("snapshot: creating gzip reader: %w", err)
		}
		reader = gr
	}
	defer reader.Close()

	var s Snapshot
	if err := json.NewDecoder(reader).Decode(&s); err != nil {
		return nil, fmt.Errorf("snapshot: parsing %s: %w. It may be corrupt", path, err)
	}
	if s.Version != FormatVersion {
		return nil, fmt.Errorf("snapshot: %s has version %q, want %q", path, s.Version, FormatVersion)
	}
	return &s, nil
}

// Remove deletes the named snapshot. Removing an absent snapshot is not
// an error.
func (st *Store) Remove(name string) error {
	err := os.Remove(st.Path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("snapshot: removing: %w", err)
	}
	return nil
}
