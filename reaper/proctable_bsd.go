//go:build unix && !linux

package reaper

func snapshotProcesses() string {
	return psSnapshot()
}
