package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/openmirror/localfs/cmd"
	"github.com/openmirror/localfs/pkg/buildinfo"
	"github.com/openmirror/localfs/pkg/flagparse"
	"github.com/openmirror/localfs/pkg/plog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, opts, err := flagparse.Parse(os.Args[1:])
	if err != nil {
		plog.Error("Invalid arguments", "error", err)
		os.Exit(2)
	}

	var runErr error
	switch command {
	case flagparse.Watch:
		runErr = cmd.RunWatch(ctx, opts.(*flagparse.WatchOptions))
	case flagparse.Snapshot:
		runErr = cmd.RunSnapshot(opts.(*flagparse.SnapshotOptions))
	case flagparse.Diff:
		runErr = cmd.RunDiff(opts.(*flagparse.DiffOptions))
	case flagparse.Version:
		runErr = cmd.RunVersion(buildinfo.Name, buildinfo.Version)
	case flagparse.None:
		return
	}

	if runErr != nil {
		plog.Error("Command failed", "command", command.String(), "error", runErr)
		os.Exit(1)
	}
}
