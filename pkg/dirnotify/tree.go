package dirnotify

import (
	"github.com/openmirror/localfs/pkg/fileaccess"
	"github.com/openmirror/localfs/pkg/fingerprint"
	"github.com/openmirror/localfs/pkg/localpath"
)

// Tree is the notifier's view of the sync engine's node tree. It exists
// so the self-notification filter can ask whether an event still
// matches what the engine itself last wrote, without this package
// depending on the engine.
type Tree interface {
	// Initializing reports whether the tree is still being built. The
	// self-notification filter stays out of the way until it is done.
	Initializing() bool

	// Lookup resolves a path relative to base to its node.
	Lookup(base Node, rel localpath.LocalPath) (Node, bool)
}

// Node is one entry of the engine's tree.
type Node interface {
	// LocalPath returns the node's absolute path in local encoding.
	LocalPath() localpath.LocalPath

	// Name returns the node's current local name.
	Name() string

	// Fingerprint returns the node's live content fingerprint.
	Fingerprint() fingerprint.Fingerprint

	// Cached returns the state recorded at the node's last successful
	// sync, or ok false when the node was never synced.
	Cached() (Cached, bool)
}

// Cached is the on-disk state a node had when it was last synced. The
// self-notification filter compares a fresh stat against it: an event
// that changed nothing relative to this record was caused by the
// engine's own write.
type Cached struct {
	Name        string
	Fingerprint fingerprint.Fingerprint
	Type        fileaccess.Type
	MTime       int64
	Size        int64
	FSID        uint64
	FSIDValid   bool
}
