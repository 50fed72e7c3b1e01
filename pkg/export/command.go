package export

import (
	"errors"
	"fmt"
)

// ErrUnknownCommand is returned for command names outside the fixed set.
var ErrUnknownCommand = errors.New("unknown command")

// Command identifies one dialog-layer operation. Commands are a closed enum
// resolved at parse time; there is no name-indexed dispatch.
type Command int

const (
	// CommandStartImport plans a filter and creates the destination.
	CommandStartImport Command = iota + 1

	// CommandFetchBatch fetches one page for a session.
	CommandFetchBatch

	// CommandFinish finalizes a session's destination.
	CommandFinish

	// CommandCancel deletes a session's destination.
	CommandCancel

	// CommandProgress reads a session's progress snapshot.
	CommandProgress
)

// String implements fmt.Stringer.
func (c Command) String() string {
	switch c {
	case CommandStartImport:
		return "startImport"
	case CommandFetchBatch:
		return "fetchBatch"
	case CommandFinish:
		return "finish"
	case CommandCancel:
		return "cancel"
	case CommandProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// ParseCommand resolves a command name to its typed value.
func ParseCommand(name string) (Command, error) {
	switch name {
	case "startImport":
		return CommandStartImport, nil
	case "fetchBatch":
		return CommandFetchBatch, nil
	case "finish":
		return CommandFinish, nil
	case "cancel":
		return CommandCancel, nil
	case "progress":
		return CommandProgress, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}
