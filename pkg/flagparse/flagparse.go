// Package flagparse turns command-line arguments into the typed options
// of one subcommand.
package flagparse

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openmirror/localfs/pkg/buildinfo"
)

// GlobalOptions are accepted by every subcommand.
type GlobalOptions struct {
	LogLevel string
	Metrics  bool
}

// WatchOptions configure the watch subcommand.
type WatchOptions struct {
	GlobalOptions

	Root           string
	Ignore         string
	DebounceDs     int64
	SnapshotDir    string
	SnapshotFormat string
}

// SnapshotOptions configure the snapshot subcommand.
type SnapshotOptions struct {
	GlobalOptions

	Root           string
	SnapshotDir    string
	SnapshotFormat string
	Name           string
}

// DiffOptions configure the diff subcommand.
type DiffOptions struct {
	GlobalOptions

	SnapshotDir    string
	SnapshotFormat string
	Old            string
	New            string
}

func registerGlobalFlags(fs *flag.FlagSet, g *GlobalOptions) {
	fs.StringVar(&g.LogLevel, "log-level", "info", "Set the logging level: 'debug', 'notice', 'info', 'warn', 'error'.")
	fs.BoolVar(&g.Metrics, "metrics", false, "Log event counters on shutdown.")
}

func registerSnapshotStoreFlags(fs *flag.FlagSet, dir, format *string) {
	fs.StringVar(dir, "snapshot-dir", "", "Directory holding state snapshots.")
	fs.StringVar(format, "snapshot-format", "gzip", "Snapshot compression format: 'gzip' or 'zstd'.")
}

// Parse parses the provided arguments (usually os.Args[1:]) and returns
// the command plus its typed options: *WatchOptions, *SnapshotOptions,
// *DiffOptions, or nil for version and help.
func Parse(args []string) (Command, any, error) {
	if len(args) == 0 {
		printTopLevelUsage(os.Stderr)
		return None, nil, nil
	}

	cmdStr := strings.ToLower(args[0])
	if cmdStr == "help" || cmdStr == "-h" || cmdStr == "-help" || cmdStr == "--help" {
		printTopLevelUsage(os.Stderr)
		return None, nil, nil
	}

	command, err := ParseCommand(cmdStr)
	if err != nil {
		return None, nil, err
	}

	switch command {
	case Watch:
		opts := &WatchOptions{}
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, &opts.GlobalOptions)
		fs.StringVar(&opts.Root, "root", "", "Directory tree to watch. (Required)")
		fs.StringVar(&opts.Ignore, "ignore", "", "Subtree to exclude from notifications (absolute path).")
		fs.Int64Var(&opts.DebounceDs, "debounce-ds", 5, "Quiet period in deciseconds before a change is reported.")
		registerSnapshotStoreFlags(fs, &opts.SnapshotDir, &opts.SnapshotFormat)
		fs.Usage = func() {
			printSubcommandUsage(command, "Watch a directory tree and report changes.", fs)
		}
		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		if opts.Root == "" {
			return command, nil, fmt.Errorf("the -root flag is required to watch")
		}
		return command, opts, nil

	case Snapshot:
		opts := &SnapshotOptions{}
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, &opts.GlobalOptions)
		fs.StringVar(&opts.Root, "root", "", "Directory tree to capture. (Required)")
		fs.StringVar(&opts.Name, "name", "root", "Name to store the snapshot under.")
		registerSnapshotStoreFlags(fs, &opts.SnapshotDir, &opts.SnapshotFormat)
		fs.Usage = func() {
			printSubcommandUsage(command, "Capture the current state of a directory tree.", fs)
		}
		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		if opts.Root == "" {
			return command, nil, fmt.Errorf("the -root flag is required to capture a snapshot")
		}
		if opts.SnapshotDir == "" {
			return command, nil, fmt.Errorf("the -snapshot-dir flag is required to capture a snapshot")
		}
		return command, opts, nil

	case Diff:
		opts := &DiffOptions{}
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, &opts.GlobalOptions)
		fs.StringVar(&opts.Old, "old", "", "Name of the older snapshot. (Required)")
		fs.StringVar(&opts.New, "new", "", "Name of the newer snapshot. (Required)")
		registerSnapshotStoreFlags(fs, &opts.SnapshotDir, &opts.SnapshotFormat)
		fs.Usage = func() {
			printSubcommandUsage(command, "Compare two stored snapshots.", fs)
		}
		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		if opts.SnapshotDir == "" || opts.Old == "" || opts.New == "" {
			return command, nil, fmt.Errorf("the -snapshot-dir, -old and -new flags are required to diff")
		}
		return command, opts, nil

	case Version:
		return command, nil, nil

	default:
		return None, nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

// printTopLevelUsage prints the main help message.
func printTopLevelUsage(w *os.File) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(w, "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(w, "A local filesystem watcher with persistent state snapshots.\n\n")
	fmt.Fprintf(w, "Usage: %s <command> [flags]\n\n", execName)
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  watch       Watch a directory tree and report changes\n")
	fmt.Fprintf(w, "  snapshot    Capture the current state of a directory tree\n")
	fmt.Fprintf(w, "  diff        Compare two stored snapshots\n")
	fmt.Fprintf(w, "  version     Print the application version\n")
	fmt.Fprintf(w, "\nRun '%s <command> -help' for more information on a command.\n", execName)
}

// printSubcommandUsage prints the help message for a specific subcommand.
func printSubcommandUsage(command Command, desc string, fs *flag.FlagSet) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "A local filesystem watcher with persistent state snapshots.\n\n")
	fmt.Fprintf(fs.Output(), "Usage of the %s command: %s %s [flags]\n\n", command, execName, command)
	fmt.Fprintf(fs.Output(), "%s\n\n", desc)
	fmt.Fprintf(fs.Output(), "Flags:\n")
	fs.PrintDefaults()
}
