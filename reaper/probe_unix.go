//go:build unix

package reaper

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isInactiveDialErr(err error) bool {
	return errors.Is(err, unix.ECONNREFUSED) || errors.Is(err, unix.ENOENT)
}
