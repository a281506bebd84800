//go:build !unix && !windows

package reaper

import (
	"errors"
	"io/fs"
)

func isInactiveDialErr(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
