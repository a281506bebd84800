//go:build linux

package reaper

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func snapshotProcesses() string {
	if s, ok := procSnapshot("/proc"); ok {
		return s
	}
	return psSnapshot()
}

// procSnapshot reads /proc/<pid>/cmdline of every process it may read.
// Arguments are separated by NUL bytes there; they are joined with spaces.
func procSnapshot(procRoot string) (string, bool) {
	entries, err := os.ReadDir(procRoot) //nolint:forbidigo
	if err != nil {
		return "", false
	}
	var b strings.Builder
	for _, e := range entries {
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(procRoot, e.Name(), "cmdline")) //nolint:forbidigo
		if err != nil || len(data) == 0 {
			continue // gone or kernel thread
		}
		b.WriteString(strings.TrimRight(strings.ReplaceAll(string(data), "\x00", " "), " "))
		b.WriteByte('\n')
	}
	return b.String(), true
}
