package cmd

import (
	"fmt"

	"github.com/openmirror/localfs/pkg/plog"
	"github.com/openmirror/localfs/pkg/snapshot"
)

// applyLogLevel translates the -log-level flag into the logger setting.
func applyLogLevel(level string) error {
	switch level {
	case "", "info":
		plog.SetLevel(plog.LevelInfo)
	case "debug":
		plog.SetLevel(plog.LevelDebug)
	case "notice":
		plog.SetLevel(plog.LevelNotice)
	case "warn":
		plog.SetLevel(plog.LevelWarn)
	case "error":
		plog.SetLevel(plog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", level)
	}
	return nil
}

// snapshotFormat translates the -snapshot-format flag.
func snapshotFormat(s string) (snapshot.Format, error) {
	switch s {
	case "", "gzip":
		return snapshot.Gzip, nil
	case "zstd":
		return snapshot.Zstd, nil
	default:
		return "", fmt.Errorf("unknown snapshot format: %q", s)
	}
}
