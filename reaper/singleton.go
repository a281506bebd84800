package reaper

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/liuxd6825/browserenv/log"
	"github.com/liuxd6825/browserenv/storage"
)

const (
	// DefaultRetries is how many times a singleton socket is probed.
	DefaultRetries = 5
	// DefaultRetryDelay is the pause between two probes.
	DefaultRetryDelay = 150 * time.Millisecond
	// DefaultProbeTimeout bounds a single connection attempt.
	DefaultProbeTimeout = 150 * time.Millisecond

	// SingletonSocket is the lock socket Chromium keeps in its singleton dir.
	SingletonSocket = "SingletonSocket"
)

// SingletonPrefixes are the names Chromium and Chrome give to the temp
// directories holding their singleton lock socket.
var SingletonPrefixes = []string{ //nolint:gochecknoglobals
	"org.chromium.Chromium.",
	".org.chromium.Chromium.",
	"com.google.Chrome.",
	".com.google.Chrome.",
}

// Singleton removes singleton lock directories whose socket no browser is
// listening on anymore.
type Singleton struct {
	fs       afero.Fs
	tempRoot string
	logger   *log.Logger

	// ProbeTimeout bounds each connection attempt to a socket.
	ProbeTimeout time.Duration

	sleep func(time.Duration)
}

// NewSingleton returns a reaper scanning the temp root of ns.
func NewSingleton(ns *storage.Namespace, logger *log.Logger) *Singleton {
	return &Singleton{
		fs:           ns.Fs(),
		tempRoot:     ns.TempRoot(),
		logger:       logger,
		ProbeTimeout: DefaultProbeTimeout,
		sleep:        time.Sleep,
	}
}

// Reap probes the socket of every singleton directory up to retries times,
// retryDelay apart, and removes the directory only when no attempt found
// the socket active. retries below 1 means a single probe.
func (s *Singleton) Reap(retries int, retryDelay time.Duration) {
	retries = max(retries, 1)

	names, err := listDirs(s.fs, s.tempRoot, SingletonPrefixes...)
	if err != nil {
		s.logger.Debugf("Singleton:Reap", "listing %q: %v", s.tempRoot, err)
		return
	}
	for _, name := range names {
		dir := filepath.Join(s.tempRoot, name)
		guard(s.logger, "Singleton:Reap", dir, func() {
			s.reap(dir, retries, retryDelay)
		})
	}
}

func (s *Singleton) reap(dir string, retries int, retryDelay time.Duration) {
	sock := filepath.Join(dir, SingletonSocket)
	if _, err := s.fs.Stat(sock); err != nil {
		return // not a singleton dir, or not one we can tell anything about
	}
	for i := 0; i < retries; i++ {
		if s.active(sock) {
			s.logger.Debugf("Singleton:Reap", "keeping %q: socket is active", dir)
			return
		}
		if i < retries-1 {
			s.sleep(retryDelay)
		}
	}
	s.logger.Debugf("Singleton:Reap", "removing stale %q", dir)
	RemoveAll(s.fs, dir, s.logger)
}

// active reports whether a browser may still own the socket at path. Only a
// missing socket or a refused connection count as inactive.
func (s *Singleton) active(path string) bool {
	fi, err := s.fs.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	if err != nil {
		return true
	}
	if fi.Mode()&os.ModeSocket == 0 {
		// unknown foreign artifact, leave it alone
		return true
	}
	return dialActive(path, s.ProbeTimeout)
}
