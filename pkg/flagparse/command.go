package flagparse

import (
	"fmt"
)

// Command defines the subcommand to execute.
type Command int

const (
	None Command = iota
	Watch
	Snapshot
	Diff
	Version
)

var commandToString = map[Command]string{
	None:     "none",
	Watch:    "watch",
	Snapshot: "snapshot",
	Diff:     "diff",
	Version:  "version",
}

var stringToCommand = func() map[string]Command {
	m := make(map[string]Command, len(commandToString))
	for c, s := range commandToString {
		m[s] = c
	}
	return m
}()

func (c Command) String() string {
	if str, ok := commandToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_command(%d)", c)
}

func ParseCommand(s string) (Command, error) {
	if command, ok := stringToCommand[s]; ok {
		return command, nil
	}
	return None, fmt.Errorf("invalid command: %q. Must be 'watch', 'snapshot', 'diff', or 'version'", s)
}
