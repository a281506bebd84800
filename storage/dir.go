package storage

import (
	"fmt"

	"github.com/spf13/afero"
)

// ProfilePrefix prefixes the names of generated profile directories.
const ProfilePrefix = "uc_"

// Dir is a user data directory. A directory generated by Make belongs to
// the Dir and is removed by Cleanup; a directory supplied by the user is
// never touched.
type Dir struct {
	Dir string // path to the directory

	// Fs is the filesystem the directory lives on, the OS one when nil.
	Fs afero.Fs

	remove bool // whether to remove the directory on Cleanup
}

func (d *Dir) fs() afero.Fs {
	if d.Fs == nil {
		d.Fs = afero.NewOsFs()
	}
	return d.Fs
}

// Make creates a new temporary directory in tmpDir, and stores the path to
// the directory in the Dir field. If tmpDir is empty the system temp
// directory is used. If dir is not empty, it is used as-is and is not
// generated nor removed.
func (d *Dir) Make(tmpDir, dir string) error {
	if dir != "" {
		d.Dir = dir
		d.remove = false
		return nil
	}
	name, err := afero.TempDir(d.fs(), tmpDir, ProfilePrefix)
	if err != nil {
		return fmt.Errorf("creating a temporary user data directory: %w", err)
	}
	d.Dir = name
	d.remove = true

	return nil
}

// Owned reports whether the directory was generated and will be removed by
// Cleanup.
func (d *Dir) Owned() bool { return d.remove }

// Exists reports whether the directory is present.
func (d *Dir) Exists() bool {
	if d.Dir == "" {
		return false
	}
	ok, err := afero.DirExists(d.fs(), d.Dir)
	return err == nil && ok
}

// Cleanup removes the generated directory. It is a no-op for user supplied
// directories and for directories that are already gone.
func (d *Dir) Cleanup() error {
	if !d.remove {
		return nil
	}
	if err := d.fs().RemoveAll(d.Dir); err != nil {
		return fmt.Errorf("removing user data directory %q: %w", d.Dir, err)
	}
	return nil
}
