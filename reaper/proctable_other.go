//go:build !unix

package reaper

func snapshotProcesses() string {
	return ""
}
