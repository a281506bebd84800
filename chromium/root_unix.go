//go:build unix

package chromium

import "golang.org/x/sys/unix"

func isRoot() bool {
	return unix.Geteuid() == 0
}
