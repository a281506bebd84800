// Package reaper removes browser artifacts left behind in the system temp
// directory by crashed or killed browser processes.
//
// Reaping is best-effort janitoring: no operation in this package returns
// an error. Every candidate is verified on its own and skipped on any doubt,
// so deleting something in use is avoided at the cost of sometimes leaving
// dead artifacts behind. Reapers may run concurrently, even from different
// processes; removing a directory that is already gone is not an error.
package reaper

import (
	"os"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/liuxd6825/browserenv/log"
)

// RemoveAll recursively removes path. The filesystem's own forceful removal
// is tried first; when it fails, every entry is removed one by one, deepest
// first, ignoring individual failures.
func RemoveAll(fs afero.Fs, path string, logger *log.Logger) {
	err := fs.RemoveAll(path)
	if err == nil {
		return
	}
	logger.Debugf("Reaper:RemoveAll", "removing %q: %v, removing entries one by one", path, err)

	var paths []string
	_ = afero.Walk(fs, path, func(p string, _ os.FileInfo, err error) error {
		if err == nil {
			paths = append(paths, p)
		}
		return nil
	})
	// children sort after their parents, so reverse order is deepest first
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	for _, p := range paths {
		if err := fs.Remove(p); err != nil && !os.IsNotExist(err) {
			logger.Debugf("Reaper:RemoveAll", "removing %q: %v", p, err)
		}
	}
}

// guard runs fn for one candidate, turning a panic into a log line so that
// the remaining candidates are still processed.
func guard(logger *log.Logger, category, candidate string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf(category, "skipping %q: %v", candidate, r)
		}
	}()
	fn()
}

// listDirs returns the names of the directories directly under root whose
// name starts with one of prefixes. Symbolic links are not followed.
func listDirs(fs afero.Fs, root string, prefixes ...string) ([]string, error) {
	infos, err := afero.ReadDir(fs, root)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	var names []string
	for _, fi := range infos {
		if !fi.IsDir() || fi.Mode()&os.ModeSymlink != 0 {
			continue
		}
		for _, p := range prefixes {
			if strings.HasPrefix(fi.Name(), p) {
				names = append(names, fi.Name())
				break
			}
		}
	}
	return names, nil
}
