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

// Package chromium turns session options into the command line of a
// Chromium based browser, and owns the temporary resources the session
// needs: its profile and its staged extensions.
package chromium

import (
	"fmt"
	"slices"

	"github.com/liuxd6825/browserenv/env"
	"github.com/liuxd6825/browserenv/extension"
	"github.com/liuxd6825/browserenv/log"
	"github.com/liuxd6825/browserenv/reaper"
	"github.com/liuxd6825/browserenv/storage"
)

// Config is a browser session: the resolved options plus the temporary
// resources allocated for them.
type Config struct {
	opts Options

	headless bool
	sandbox  bool
	expert   bool
	lang     string
	host     string
	port     int64
	execPath string
	args     []string

	dataDir storage.Dir
	stager  *extension.Stager

	ns        *storage.Namespace
	logger    *log.Logger
	envLookup env.LookupFunc
	procs     reaper.ProcessTable
	isRoot    func() bool

	// Extra holds values that are passed through to whatever launches the
	// browser. Config does not interpret them.
	Extra map[string]string
}

// ConfigOption sets an optional dependency of a Config.
type ConfigOption func(*Config)

// WithNamespace sets the temp namespace profiles and extensions are
// created in.
func WithNamespace(ns *storage.Namespace) ConfigOption {
	return func(c *Config) { c.ns = ns }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) ConfigOption {
	return func(c *Config) { c.logger = logger }
}

// WithEnv sets the environment the executable is looked up in.
func WithEnv(lookup env.LookupFunc) ConfigOption {
	return func(c *Config) { c.envLookup = lookup }
}

// WithProcessTable sets the process table the legacy profile reaper checks.
func WithProcessTable(procs reaper.ProcessTable) ConfigOption {
	return func(c *Config) { c.procs = procs }
}

// WithRootCheck replaces the superuser detection.
func WithRootCheck(fn func() bool) ConfigOption {
	return func(c *Config) { c.isRoot = fn }
}

// NewConfig resolves opts into a session. Without a user data directory a
// temporary profile is created under the profiles directory of the
// namespace; it is removed by Cleanup.
func NewConfig(opts Options, cfgOpts ...ConfigOption) (*Config, error) {
	opts = NewOptions().Apply(opts)
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c := &Config{
		opts:      opts,
		headless:  opts.Headless.Bool,
		sandbox:   opts.Sandbox.Bool,
		expert:    opts.Expert.Bool,
		lang:      opts.Lang.String,
		host:      opts.Host.String,
		port:      opts.Port.Int64,
		execPath:  opts.ExecutablePath.String,
		envLookup: env.Lookup,
		isRoot:    isRoot,
		Extra:     make(map[string]string, len(opts.Extra)),
	}
	for _, o := range cfgOpts {
		o(c)
	}
	if c.ns == nil {
		c.ns = storage.DefaultNamespace(c.logger)
	}
	for k, v := range opts.Extra {
		c.Extra[k] = v
	}

	if opts.NoSandbox.Valid {
		c.sandbox = !opts.NoSandbox.Bool
	}
	if c.sandbox && c.isRoot() {
		c.logger.Infof("Config:NewConfig", "detected root usage, auto disabling sandbox mode")
		c.sandbox = false
	}

	c.dataDir = storage.Dir{Fs: c.ns.Fs()}
	if err := c.makeDataDir(); err != nil {
		return nil, err
	}
	c.stager = extension.NewStager(c.ns, c.logger)

	for _, arg := range opts.Args {
		if err := c.AddArgument(arg); err != nil {
			c.Cleanup()
			return nil, err
		}
	}
	for _, ext := range opts.Extensions {
		if err := c.AddExtension(ext); err != nil {
			c.Cleanup()
			return nil, err
		}
	}

	return c, nil
}

func (c *Config) makeDataDir() error {
	tmpDir := ""
	if c.opts.UserDataDir.String == "" {
		tmpDir = c.ns.Profiles()
	}
	if err := c.dataDir.Make(tmpDir, c.opts.UserDataDir.String); err != nil {
		return fmt.Errorf("preparing the browser profile: %w", err)
	}
	return nil
}

// AddArgument adds a browser flag. Flags controlled by a dedicated option,
// such as headless mode or the user data directory, are rejected with an
// error wrapping errext.ErrInvalidArgument.
func (c *Config) AddArgument(arg string) error {
	if err := checkArgument(arg); err != nil {
		return err
	}
	c.args = append(c.args, arg)
	return nil
}

// AddExtension adds an unpacked extension directory or a packaged extension
// file to load.
func (c *Config) AddExtension(path string) error {
	return c.stager.AddSource(path) //nolint:wrapcheck
}

// Args returns the browser command line for the current state of the
// session. Calling it again without changing the session yields the same
// flags in the same order.
//
// The language is always passed as a trailing --lang flag, en-US unless the
// Lang option says otherwise, so the command line carries one flag more
// than the browser settings alone would produce.
func (c *Config) Args() []string {
	return buildArgs(argState{
		userArgs:    c.args,
		userDataDir: c.dataDir.Dir,
		extensions:  c.stager.Prepared(),
		expert:      c.expert,
		headless:    c.headless,
		sandbox:     c.sandbox,
		host:        c.host,
		port:        c.port,
		lang:        c.lang,
	})
}

// Prepare readies the session for a browser start and returns its command
// line. Stale artifacts of earlier browsers are reaped first, as enabled in
// the options; reaping never fails. A temporary profile removed by a
// previous Cleanup is recreated, and extensions are staged anew.
func (c *Config) Prepare() ([]string, error) {
	if c.opts.ReapSingletons.Bool {
		reaper.NewSingleton(c.ns, c.logger).Reap(int(c.opts.ReapRetries.Int64), c.opts.retryDelay())
	}
	if c.opts.ReapLegacyProfiles.Bool {
		reaper.NewLegacy(c.ns, c.procs, c.logger).Reap(c.opts.minAge())
	}

	if c.dataDir.Owned() && !c.dataDir.Exists() {
		if err := c.makeDataDir(); err != nil {
			return nil, err
		}
	}
	if _, err := c.stager.Prepare(); err != nil {
		return nil, err //nolint:wrapcheck
	}

	return c.Args(), nil
}

// Cleanup removes the staged extensions and the temporary profile. A user
// supplied profile is never touched. Failures are logged.
func (c *Config) Cleanup() {
	if c.stager != nil {
		c.stager.Cleanup()
	}
	if err := c.dataDir.Cleanup(); err != nil {
		c.logger.Warnf("Config:Cleanup", "%v", err)
	}
}

// ExecutablePath returns the browser executable to start. It is empty
// without an error when attaching to a running browser at host and port.
func (c *Config) ExecutablePath() (string, error) {
	if c.execPath != "" {
		return c.execPath, nil
	}
	if c.host != "" && c.port != 0 {
		return "", nil
	}
	return FindExecutable(c.ns.Fs(), c.envLookup)
}

// UserDataDir returns the profile directory of the session.
func (c *Config) UserDataDir() string { return c.dataDir.Dir }

// UsesCustomDataDir reports whether the profile directory was supplied
// rather than created for the session.
func (c *Config) UsesCustomDataDir() bool { return !c.dataDir.Owned() }

// Headless reports whether the browser runs headless.
func (c *Config) Headless() bool { return c.headless }

// Sandbox reports whether the browser runs sandboxed.
func (c *Config) Sandbox() bool { return c.sandbox }

// Lang returns the browser language.
func (c *Config) Lang() string { return c.lang }

// Host returns the remote debugging host.
func (c *Config) Host() string { return c.host }

// Port returns the remote debugging port, 0 when unset.
func (c *Config) Port() int64 { return c.port }

// Expert reports whether expert mode is on.
func (c *Config) Expert() bool { return c.expert }

// UserArgs returns the flags added with AddArgument.
func (c *Config) UserArgs() []string { return slices.Clone(c.args) }

// Extensions returns the extension sources of the session.
func (c *Config) Extensions() []string { return c.stager.Sources() }

// Options returns the options the session was created from, defaults
// included.
func (c *Config) Options() Options { return c.opts }
