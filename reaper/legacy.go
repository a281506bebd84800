package reaper

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/liuxd6825/browserenv/log"
	"github.com/liuxd6825/browserenv/storage"
)

const (
	// DefaultMinAge is how old a legacy profile must be before it is removed.
	DefaultMinAge = 120 * time.Second

	// LegacyProfilePrefix names profiles created directly in the temp root
	// by older releases.
	LegacyProfilePrefix = "uc_"
)

// profileMarkers identify a directory as a browser profile.
var profileMarkers = []struct { //nolint:gochecknoglobals
	name string
	dir  bool
}{
	{"Local State", false},
	{"Default", true},
	{"Last Version", false},
}

// Legacy removes profile directories older releases left directly in the
// temp root.
type Legacy struct {
	fs       afero.Fs
	tempRoot string
	logger   *log.Logger
	procs    ProcessTable

	now       func() time.Time
	canonical func(string) string
}

// NewLegacy returns a reaper scanning the temp root of ns, cross-checking
// candidates against procs. A nil procs reads the host's process table.
func NewLegacy(ns *storage.Namespace, procs ProcessTable, logger *log.Logger) *Legacy {
	if procs == nil {
		procs = SystemProcessTable{}
	}
	return &Legacy{
		fs:        ns.Fs(),
		tempRoot:  ns.TempRoot(),
		logger:    logger,
		procs:     procs,
		now:       time.Now,
		canonical: canonicalPath,
	}
}

// Reap removes every legacy profile at least minAge old that is empty or
// looks like a browser profile, unless a running process was started with
// it as its user data directory.
//
// The process table is read once per call. When it cannot be read, the
// age and shape checks alone decide.
func (l *Legacy) Reap(minAge time.Duration) {
	snapshot := l.procs.Snapshot()
	if snapshot == "" {
		l.logger.Debugf("Legacy:Reap", "no process table available, relying on age and shape only")
	}

	names, err := listDirs(l.fs, l.tempRoot, LegacyProfilePrefix)
	if err != nil {
		l.logger.Debugf("Legacy:Reap", "listing %q: %v", l.tempRoot, err)
		return
	}
	for _, name := range names {
		dir := filepath.Join(l.tempRoot, name)
		guard(l.logger, "Legacy:Reap", dir, func() {
			l.reap(dir, minAge, snapshot)
		})
	}
}

func (l *Legacy) reap(dir string, minAge time.Duration, snapshot string) {
	// an unreadable mtime must not keep the directory around forever
	if fi, err := l.fs.Stat(dir); err == nil {
		if age := l.now().Sub(fi.ModTime()); age < minAge {
			l.logger.Debugf("Legacy:Reap", "keeping %q: only %s old", dir, age.Round(time.Second))
			return
		}
	}

	empty, err := afero.IsEmpty(l.fs, dir)
	if err != nil {
		l.logger.Debugf("Legacy:Reap", "keeping %q: %v", dir, err)
		return
	}
	if !empty && !l.isProfile(dir) {
		l.logger.Debugf("Legacy:Reap", "keeping %q: not a browser profile", dir)
		return
	}
	if l.inUse(dir, snapshot) {
		l.logger.Debugf("Legacy:Reap", "keeping %q: in use by a running process", dir)
		return
	}

	l.logger.Debugf("Legacy:Reap", "removing stale %q", dir)
	RemoveAll(l.fs, dir, l.logger)
}

func (l *Legacy) isProfile(dir string) bool {
	for _, m := range profileMarkers {
		fi, err := l.fs.Stat(filepath.Join(dir, m.name))
		if err == nil && fi.IsDir() == m.dir {
			return true
		}
	}
	return false
}

// inUse reports whether snapshot holds a --user-data-dir argument naming dir,
// as given or canonicalized, with either separator.
func (l *Legacy) inUse(dir, snapshot string) bool {
	if snapshot == "" {
		return false
	}
	for _, p := range []string{dir, l.canonical(dir)} {
		if strings.Contains(snapshot, "--user-data-dir="+p) ||
			strings.Contains(snapshot, "--user-data-dir "+p) {
			return true
		}
	}
	return false
}

func canonicalPath(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
