package cmd

import (
	"fmt"
	"sort"

	"github.com/openmirror/localfs/pkg/flagparse"
	"github.com/openmirror/localfs/pkg/snapshot"
)

// RunDiff compares two stored snapshots and prints the differences.
func RunDiff(opts *flagparse.DiffOptions) error {
	if err := applyLogLevel(opts.LogLevel); err != nil {
		return err
	}
	format, err := snapshotFormat(opts.SnapshotFormat)
	if err != nil {
		return err
	}

	store, err := snapshot.NewStore(opts.SnapshotDir, format)
	if err != nil {
		return err
	}

	prev, err := store.Load(opts.Old)
	if err != nil {
		return fmt.Errorf("loading %s: %w", opts.Old, err)
	}
	cur, err := store.Load(opts.New)
	if err != nil {
		return fmt.Errorf("loading %s: %w", opts.New, err)
	}

	changes := snapshot.Diff(prev, cur)
	if changes.Empty() {
		fmt.Println("No differences.")
		return nil
	}

	printSection("Added", changes.Added)
	printSection("Removed", changes.Removed)
	printSection("Modified", changes.Modified)
	return nil
}

func printSection(title string, paths []string) {
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	fmt.Printf("%s (%d):\n", title, len(paths))
	for _, p := range paths {
		fmt.Printf("  %s\n", p)
	}
}
