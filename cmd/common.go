package cmd

import (
	"errors"
	"fmt"
	iofs "io/fs"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/browserenv/chromium"
	"github.com/liuxd6825/browserenv/env"
	"github.com/liuxd6825/browserenv/errext"
	"github.com/liuxd6825/browserenv/errext/exitcodes"
	"github.com/liuxd6825/browserenv/log"
	"github.com/liuxd6825/browserenv/storage"
	"github.com/liuxd6825/browserenv/types"
)

// Panic if the given error is not nil.
func must(err error) {
	if err != nil {
		panic(err)
	}
}

func getNullBool(flags *pflag.FlagSet, key string) null.Bool {
	v, err := flags.GetBool(key)
	if err != nil {
		panic(err)
	}
	return null.NewBool(v, flags.Changed(key))
}

func getNullInt64(flags *pflag.FlagSet, key string) null.Int {
	v, err := flags.GetInt64(key)
	if err != nil {
		panic(err)
	}
	return null.NewInt(v, flags.Changed(key))
}

func getNullDuration(flags *pflag.FlagSet, key string) types.NullDuration {
	v, err := flags.GetDuration(key)
	if err != nil {
		panic(err)
	}
	return types.NullDuration{Duration: types.Duration(v), Valid: flags.Changed(key)}
}

func getNullString(flags *pflag.FlagSet, key string) null.String {
	v, err := flags.GetString(key)
	if err != nil {
		panic(err)
	}
	return null.NewString(v, flags.Changed(key))
}

func printToStdout(gs *globalState, s string) {
	if _, err := fmt.Fprint(gs.stdOut, s); err != nil {
		gs.logger.Errorf("could not print '%s' to stdout: %s", s, err.Error())
	}
}

// readConfigFile returns the contents of the config file. A missing file
// is only an error when it was asked for explicitly.
func readConfigFile(gs *globalState) ([]byte, error) {
	path := gs.flags.configFilePath
	data, err := afero.ReadFile(gs.fs, path)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, iofs.ErrNotExist) && path == gs.defaultFlags.configFilePath:
		return nil, nil
	case errors.Is(err, iofs.ErrNotExist):
		return nil, errext.WithHint(
			fmt.Errorf("config file %q: %w", path, errext.ErrNotFound),
			"check the --config flag or the BROWSERENV_CONFIG variable",
		)
	default:
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("reading config file %q: %w", path, err), exitcodes.InvalidConfig)
	}
}

// loadOptions consolidates the config file, the environment and flagOpts.
func loadOptions(gs *globalState, flagOpts chromium.Options) (chromium.Options, error) {
	data, err := readConfigFile(gs)
	if err != nil {
		return chromium.Options{}, err
	}
	opts, err := chromium.GetConsolidatedOptions(data, env.Map(gs.envVars), flagOpts)
	if err != nil {
		return opts, fmt.Errorf("consolidating options: %w", err)
	}
	return opts, nil
}

// newLogger makes the category logger handed to the browserenv packages.
func newLogger(gs *globalState, opts chromium.Options) (*log.Logger, error) {
	logger := log.New(gs.logger, false, nil)
	if opts.LogLevel.Valid && !gs.flags.verbose {
		if err := logger.SetLevel(opts.LogLevel.String); err != nil {
			return nil, errext.WithHint(
				fmt.Errorf("log level %q: %w", opts.LogLevel.String, errext.ErrInvalidArgument),
				"should be one of: panic, fatal, error, warn, warning, info, debug, trace",
			)
		}
	}
	if filter, ok := gs.envVars["BROWSERENV_LOG_CATEGORY_FILTER"]; ok {
		if err := logger.SetCategoryFilter(filter); err != nil {
			return nil, fmt.Errorf("log category filter %q: %w: %w", filter, errext.ErrInvalidArgument, err)
		}
	}
	if _, ok := gs.envVars["BROWSERENV_LOG_CALLER"]; ok {
		logger.ReportCaller()
	}
	return logger, nil
}

func newNamespace(gs *globalState, logger *log.Logger) *storage.Namespace {
	return storage.NewNamespace(gs.fs, gs.tempRoot, logger)
}
