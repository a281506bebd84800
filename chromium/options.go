package chromium

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/browserenv/env"
	"github.com/liuxd6825/browserenv/errext"
	"github.com/liuxd6825/browserenv/reaper"
	"github.com/liuxd6825/browserenv/types"
)

// DefaultLang is the browser language used unless one is configured.
const DefaultLang = "en-US"

// ArgList is a list of browser flags. From the environment it is read as a
// whitespace separated list, since flags may contain commas.
type ArgList []string

// Decode implements envconfig.Decoder.
func (a *ArgList) Decode(value string) error {
	*a = strings.Fields(value)
	return nil
}

// PathList is a list of filesystem paths. From the environment it is read
// as an OS path list, like PATH.
type PathList []string

// Decode implements envconfig.Decoder.
func (p *PathList) Decode(value string) error {
	var paths []string
	for _, s := range filepath.SplitList(value) {
		if s = strings.TrimSpace(s); s != "" {
			paths = append(paths, s)
		}
	}
	*p = paths
	return nil
}

// Options holds everything a browser session can be configured with.
//
//nolint:lll
type Options struct {
	// UserDataDir is the profile directory to use. A temporary one is
	// created and owned by the session when empty.
	UserDataDir null.String `json:"userDataDir" yaml:"userDataDir" envconfig:"BROWSERENV_USER_DATA_DIR"`
	Headless    null.Bool   `json:"headless" yaml:"headless" envconfig:"BROWSERENV_HEADLESS"`
	Sandbox     null.Bool   `json:"sandbox" yaml:"sandbox" envconfig:"BROWSERENV_SANDBOX"`
	// NoSandbox is an inverted alias of Sandbox and takes precedence over it.
	NoSandbox      null.Bool   `json:"noSandbox" yaml:"noSandbox" envconfig:"BROWSERENV_NO_SANDBOX"`
	Lang           null.String `json:"lang" yaml:"lang" envconfig:"BROWSERENV_LANG"`
	Host           null.String `json:"host" yaml:"host" envconfig:"BROWSERENV_HOST"`
	Port           null.Int    `json:"port" yaml:"port" envconfig:"BROWSERENV_PORT"`
	Expert         null.Bool   `json:"expert" yaml:"expert" envconfig:"BROWSERENV_EXPERT"`
	ExecutablePath null.String `json:"executablePath" yaml:"executablePath" envconfig:"BROWSERENV_EXECUTABLE_PATH"`
	Args           ArgList     `json:"args" yaml:"args" envconfig:"BROWSERENV_ARGS"`
	Extensions     PathList    `json:"extensions" yaml:"extensions" envconfig:"BROWSERENV_EXTENSIONS"`

	ReapSingletons     null.Bool          `json:"reapSingletons" yaml:"reapSingletons" envconfig:"BROWSERENV_REAP_SINGLETONS"`
	ReapLegacyProfiles null.Bool          `json:"reapLegacyProfiles" yaml:"reapLegacyProfiles" envconfig:"BROWSERENV_REAP_LEGACY_PROFILES"`
	ReapRetries        null.Int           `json:"reapRetries" yaml:"reapRetries" envconfig:"BROWSERENV_REAP_RETRIES"`
	ReapRetryDelay     types.NullDuration `json:"reapRetryDelay" yaml:"reapRetryDelay" envconfig:"BROWSERENV_REAP_RETRY_DELAY"`
	LegacyMinAge       types.NullDuration `json:"legacyMinAge" yaml:"legacyMinAge" envconfig:"BROWSERENV_LEGACY_MIN_AGE"`

	LogLevel null.String `json:"log" yaml:"log" envconfig:"BROWSERENV_LOG"`

	// Extra is passed through to the session untouched.
	Extra map[string]string `json:"extra" yaml:"extra" ignored:"true"`
}

// NewOptions returns the default options. None of the defaults count as set.
func NewOptions() Options {
	return Options{
		Headless:           null.NewBool(false, false),
		Sandbox:            null.NewBool(true, false),
		Lang:               null.NewString(DefaultLang, false),
		Expert:             null.NewBool(false, false),
		ReapSingletons:     null.NewBool(true, false),
		ReapLegacyProfiles: null.NewBool(true, false),
		ReapRetries:        null.NewInt(reaper.DefaultRetries, false),
		ReapRetryDelay:     types.NewNullDuration(reaper.DefaultRetryDelay, false),
		LegacyMinAge:       types.NewNullDuration(reaper.DefaultMinAge, false),
		LogLevel:           null.NewString("info", false),
	}
}

// Apply overlays the set fields of opts on the receiver.
//
//nolint:cyclop
func (o Options) Apply(opts Options) Options {
	if opts.UserDataDir.Valid {
		o.UserDataDir = opts.UserDataDir
	}
	if opts.Headless.Valid {
		o.Headless = opts.Headless
	}
	if opts.Sandbox.Valid {
		o.Sandbox = opts.Sandbox
	}
	if opts.NoSandbox.Valid {
		o.NoSandbox = opts.NoSandbox
	}
	if opts.Lang.Valid {
		o.Lang = opts.Lang
	}
	if opts.Host.Valid {
		o.Host = opts.Host
	}
	if opts.Port.Valid {
		o.Port = opts.Port
	}
	if opts.Expert.Valid {
		o.Expert = opts.Expert
	}
	if opts.ExecutablePath.Valid {
		o.ExecutablePath = opts.ExecutablePath
	}
	if len(opts.Args) > 0 {
		o.Args = opts.Args
	}
	if len(opts.Extensions) > 0 {
		o.Extensions = opts.Extensions
	}
	if opts.ReapSingletons.Valid {
		o.ReapSingletons = opts.ReapSingletons
	}
	if opts.ReapLegacyProfiles.Valid {
		o.ReapLegacyProfiles = opts.ReapLegacyProfiles
	}
	if opts.ReapRetries.Valid {
		o.ReapRetries = opts.ReapRetries
	}
	if opts.ReapRetryDelay.Valid {
		o.ReapRetryDelay = opts.ReapRetryDelay
	}
	if opts.LegacyMinAge.Valid {
		o.LegacyMinAge = opts.LegacyMinAge
	}
	if opts.LogLevel.Valid {
		o.LogLevel = opts.LogLevel
	}
	if len(opts.Extra) > 0 {
		extra := make(map[string]string, len(o.Extra)+len(opts.Extra))
		for k, v := range o.Extra {
			extra[k] = v
		}
		for k, v := range opts.Extra {
			extra[k] = v
		}
		o.Extra = extra
	}
	return o
}

// Validate checks the values that can not be checked while parsing.
func (o Options) Validate() error {
	if o.Port.Valid && (o.Port.Int64 < 0 || o.Port.Int64 > 65535) {
		return errext.WithHint(
			fmt.Errorf("port %d out of range: %w", o.Port.Int64, errext.ErrInvalidArgument),
			"the remote debugging port must be between 0 and 65535",
		)
	}
	if o.ReapRetryDelay.Valid && o.ReapRetryDelay.Duration < 0 {
		return fmt.Errorf("negative reap retry delay %s: %w", o.ReapRetryDelay.Duration, errext.ErrInvalidArgument)
	}
	if o.LegacyMinAge.Valid && o.LegacyMinAge.Duration < 0 {
		return fmt.Errorf("negative legacy profile age %s: %w", o.LegacyMinAge.Duration, errext.ErrInvalidArgument)
	}
	return nil
}

// ParseOptions reads options from a YAML or JSON document.
func ParseOptions(data []byte) (Options, error) {
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, errext.WithHint(
			fmt.Errorf("parsing options: %w: %w", errext.ErrInvalidArgument, err),
			"the config file must be a YAML or JSON object",
		)
	}
	return opts, nil
}

// GetConsolidatedOptions merges, in increasing order of precedence, the
// defaults, the options in the config file contents fileData, the
// environment and the options set from the command line.
func GetConsolidatedOptions(fileData []byte, envLookup env.LookupFunc, flags Options) (Options, error) {
	result := NewOptions()

	if len(fileData) > 0 {
		fileOpts, err := ParseOptions(fileData)
		if err != nil {
			return result, err
		}
		result = result.Apply(fileOpts)
	}

	if envLookup == nil {
		envLookup = env.EmptyLookup
	}
	envOpts := Options{}
	if err := envconfig.Process("", &envOpts, envLookup); err != nil {
		return result, errext.WithHint(
			fmt.Errorf("parsing environment: %w: %w", errext.ErrInvalidArgument, err),
			"check the BROWSERENV_* environment variables",
		)
	}
	result = result.Apply(envOpts).Apply(flags)

	return result, result.Validate()
}

// retryDelay and minAge convert the durations for the reapers.
func (o Options) retryDelay() time.Duration { return o.ReapRetryDelay.TimeDuration() }
func (o Options) minAge() time.Duration     { return o.LegacyMinAge.TimeDuration() }
