// Package storage resolves the temp directories browserenv works in: the
// dedicated namespace under the system temp dir and per-session profiles.
package storage

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/liuxd6825/browserenv/log"
)

const (
	// NamespaceDir is the directory created under the system temp dir.
	NamespaceDir = "nodriver"
	// ProfilesDir holds temporary user data directories.
	ProfilesDir = "profiles"
	// ExtensionsDir holds unpacked packaged extensions.
	ExtensionsDir = "extensions"
)

// Namespace is the dedicated temp directory tree of browserenv. Every path it
// hands out is usable: when a directory cannot be created the nearest
// existing ancestor it knows of is returned instead, so resolution never
// fails. Directories are created lazily and never removed.
//
// A Namespace is safe for concurrent use.
type Namespace struct {
	fs     afero.Fs
	root   string
	logger *log.Logger

	once sync.Once
	base string
}

// NewNamespace returns a namespace rooted at tempRoot on fs.
func NewNamespace(fs afero.Fs, tempRoot string, logger *log.Logger) *Namespace {
	return &Namespace{
		fs:     fs,
		root:   tempRoot,
		logger: logger,
	}
}

// DefaultNamespace returns the namespace on the OS filesystem under os.TempDir.
func DefaultNamespace(logger *log.Logger) *Namespace {
	return NewNamespace(afero.NewOsFs(), os.TempDir(), logger) //nolint:forbidigo
}

// Fs returns the filesystem the namespace lives on.
func (n *Namespace) Fs() afero.Fs { return n.fs }

// TempRoot returns the system temp directory the namespace is rooted at.
func (n *Namespace) TempRoot() string { return n.root }

// Base returns the namespace root, creating it on first use. If it cannot be
// created, the system temp root is returned and cached.
func (n *Namespace) Base() string {
	n.once.Do(func() {
		base := filepath.Join(n.root, NamespaceDir)
		if err := n.fs.MkdirAll(base, 0o755); err != nil {
			n.logger.Debugf("Namespace:Base", "creating %q: %v, falling back to %q", base, err, n.root)
			base = n.root
		}
		n.base = base
	})
	return n.base
}

// Subdir returns the named child of Base, creating it if needed. On failure
// Base itself is returned.
func (n *Namespace) Subdir(name string) string {
	base := n.Base()
	dir := filepath.Join(base, name)
	if err := n.fs.MkdirAll(dir, 0o755); err != nil {
		n.logger.Debugf("Namespace:Subdir", "creating %q: %v, falling back to %q", dir, err, base)
		return base
	}
	return dir
}

// Profiles returns the directory holding temporary profiles.
func (n *Namespace) Profiles() string { return n.Subdir(ProfilesDir) }

// Extensions returns the directory holding unpacked extensions.
func (n *Namespace) Extensions() string { return n.Subdir(ExtensionsDir) }
