package reaper

import (
	"os/exec"
	"strings"
)

// ProcessTable gives a text snapshot of the command lines of all running
// processes, one process per line. An empty snapshot means nothing is known.
type ProcessTable interface {
	Snapshot() string
}

// ProcessTableFunc adapts a function to a ProcessTable.
type ProcessTableFunc func() string

// Snapshot calls f.
func (f ProcessTableFunc) Snapshot() string { return f() }

// SystemProcessTable reads the process table of the host. It returns an
// empty snapshot where listing processes is unsupported or fails.
type SystemProcessTable struct{}

// Snapshot lists the command lines of the running processes.
func (SystemProcessTable) Snapshot() string {
	return snapshotProcesses()
}

// psSnapshot lists processes with ps, without truncating long command lines.
func psSnapshot() string {
	out, err := exec.Command("ps", "-axww", "-o", "command=").Output() //nolint:gosec
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
