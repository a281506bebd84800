//go:build windows

package reaper

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/windows"
)

func isInactiveDialErr(err error) bool {
	return errors.Is(err, windows.WSAECONNREFUSED) || errors.Is(err, fs.ErrNotExist)
}
