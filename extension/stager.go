/*
 *
 * browserenv - browser process resource lifecycle manager
 * Copyright (C) 2024 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package extension stages browser extensions for a session: unpacked
// extension directories are used in place, packaged ones are extracted into
// temporary directories owned by the session.
package extension

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/liuxd6825/browserenv/errext"
	"github.com/liuxd6825/browserenv/log"
	"github.com/liuxd6825/browserenv/reaper"
	"github.com/liuxd6825/browserenv/storage"
)

// StagedPrefix prefixes the directories packaged extensions are extracted to.
const StagedPrefix = "extension_"

const manifestPrefix = "manifest."

type source struct {
	path     string
	packaged bool
}

// Stager tracks the extension sources of a session and the directories it
// extracted them to.
type Stager struct {
	ns     *storage.Namespace
	fs     afero.Fs
	logger *log.Logger

	mu       sync.Mutex
	sources  []source
	staged   []string
	prepared []string
}

// NewStager returns a stager extracting into the extensions directory of ns.
func NewStager(ns *storage.Namespace, logger *log.Logger) *Stager {
	return &Stager{
		ns:     ns,
		fs:     ns.Fs(),
		logger: logger,
	}
}

// AddSource registers an extension. A directory is searched for a manifest
// file and replaced by the directory holding it; a file is taken to be a
// packaged extension and only checked when the stager is prepared.
func (s *Stager) AddSource(path string) error {
	path = absPath(path)
	fi, err := s.fs.Stat(path)
	if err != nil {
		return errext.WithHint(
			fmt.Errorf("extension source %q: %w: %v", path, errext.ErrNotFound, err), //nolint:errorlint
			"point to an unpacked extension directory or a packaged .crx or .zip file",
		)
	}

	src := source{path: path, packaged: !fi.IsDir()}
	if fi.IsDir() {
		if dir, ok := s.findManifest(path); ok {
			src.path = dir
		}
	}

	s.mu.Lock()
	s.sources = append(s.sources, src)
	s.mu.Unlock()

	s.logger.Debugf("Stager:AddSource", "added %q packaged:%t", src.path, src.packaged)
	return nil
}

// findManifest returns the directory under root holding a manifest file.
// The shallowest one wins, and among equally deep ones the first in lexical
// order.
func (s *Stager) findManifest(root string) (string, bool) {
	var (
		best      string
		bestDepth = -1
	)
	_ = afero.Walk(s.fs, root, func(p string, fi os.FileInfo, err error) error {
		if err != nil || fi.IsDir() || !strings.HasPrefix(fi.Name(), manifestPrefix) {
			return nil //nolint:nilerr
		}
		dir := filepath.Dir(p)
		rel, rerr := filepath.Rel(root, dir)
		if rerr != nil {
			return nil //nolint:nilerr
		}
		depth := 0
		if rel != "." {
			depth = strings.Count(rel, string(filepath.Separator)) + 1
		}
		if bestDepth < 0 || depth < bestDepth || (depth == bestDepth && dir < best) {
			best, bestDepth = dir, depth
		}
		return nil
	})
	return best, bestDepth >= 0
}

// Sources returns the registered sources in the order they were added.
func (s *Stager) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, len(s.sources))
	for i, src := range s.sources {
		paths[i] = src.path
	}
	return paths
}

// Prepare removes what a previous Prepare staged, then extracts every
// packaged source into a fresh directory. It returns the directories to
// load, in source order. When a package cannot be extracted its directory
// is removed and an error wrapping errext.ErrExtractionFailed is returned.
func (s *Stager) Prepare() ([]string, error) {
	s.Cleanup()

	s.mu.Lock()
	defer s.mu.Unlock()

	prepared := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		if !src.packaged {
			prepared = append(prepared, src.path)
			continue
		}
		dir, err := s.stage(src.path)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, dir)
	}
	s.prepared = prepared

	return append([]string(nil), prepared...), nil
}

func (s *Stager) stage(src string) (string, error) {
	dir, err := afero.TempDir(s.fs, s.ns.Extensions(), StagedPrefix)
	if err != nil {
		return "", fmt.Errorf("staging extension %q: %w: %w", src, errext.ErrExtractionFailed, err)
	}
	if err := unpack(s.fs, src, dir); err != nil {
		reaper.RemoveAll(s.fs, dir, s.logger)
		return "", errext.WithHint(
			fmt.Errorf("staging extension %q: %w: %w", src, errext.ErrExtractionFailed, err),
			"packaged extensions must be zip or crx files",
		)
	}
	s.staged = append(s.staged, dir)
	s.logger.Debugf("Stager:Prepare", "extracted %q to %q", src, dir)

	return dir, nil
}

// Prepared returns the directories of the last successful Prepare, if it was
// not cleaned up since.
func (s *Stager) Prepared() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.prepared...)
}

// Cleanup removes every directory the stager extracted to. Failures are
// logged; the stager forgets about the directories either way.
func (s *Stager) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dir := range s.staged {
		err := s.fs.RemoveAll(dir)
		switch {
		case err == nil, os.IsNotExist(err):
			s.logger.Debugf("Stager:Cleanup", "removed %q", dir)
		default:
			s.logger.Warnf("Stager:Cleanup", "removing %q: %v", dir, err)
		}
	}
	s.staged = nil
	s.prepared = nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
