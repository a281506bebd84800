package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/liuxd6825/browserenv/reaper"
)

const defaultConfigFileName = "config.yaml"

// globalFlags contains global config values that apply to all subcommands.
type globalFlags struct {
	configFilePath string
	logOutput      string
	logFormat      string
	verbose        bool
	noColor        bool
}

// globalState contains the globalFlags and accessors for most of the global
// process-external state like CLI arguments, env vars, standard input,
// output and error, etc. In practice, most of it is normally accessed
// through the `os` package from the Go stdlib.
//
// The only reason it exists is so tests can replace every part of it with
// an in-memory fake: a MemMapFs, buffers for the outputs, a fixed process
// table and an exit function that records the code.
type globalState struct {
	ctx context.Context

	fs       afero.Fs
	args     []string
	envVars  map[string]string
	tempRoot string

	defaultFlags, flags globalFlags

	outMutex       *sync.Mutex
	stdOut, stdErr *consoleWriter

	logger         *logrus.Logger
	fallbackLogger logrus.FieldLogger

	procs  reaper.ProcessTable
	isRoot func() bool // nil means detecting it
	osExit func(int)
}

func newGlobalState(ctx context.Context) *globalState {
	isStdoutTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	isStderrTTY := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	outMutex := &sync.Mutex{}
	stdOut := &consoleWriter{colorable.NewColorableStdout(), isStdoutTTY, outMutex}
	stdErr := &consoleWriter{colorable.NewColorableStderr(), isStderrTTY, outMutex}

	envVars := buildEnvMap(os.Environ())

	confDir, err := os.UserConfigDir()
	if err != nil {
		confDir = ".config"
	}
	defaultFlags := getDefaultFlags(confDir)

	logger := &logrus.Logger{
		Out:       stdErr,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}

	return &globalState{
		ctx:          ctx,
		fs:           afero.NewOsFs(),
		args:         append(make([]string, 0, len(os.Args)), os.Args...),
		envVars:      envVars,
		tempRoot:     os.TempDir(),
		defaultFlags: defaultFlags,
		flags:        consolidateGlobalFlags(defaultFlags, envVars),
		outMutex:     outMutex,
		stdOut:       stdOut,
		stdErr:       stdErr,
		logger:       logger,
		fallbackLogger: &logrus.Logger{ // we may modify the other one
			Out:       stdErr,
			Formatter: new(logrus.TextFormatter),
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.InfoLevel,
		},
		procs:  reaper.SystemProcessTable{},
		osExit: os.Exit,
	}
}

func getDefaultFlags(confDir string) globalFlags {
	return globalFlags{
		configFilePath: filepath.Join(confDir, "browserenv", defaultConfigFileName),
		logOutput:      "stderr",
	}
}

func consolidateGlobalFlags(defaultFlags globalFlags, env map[string]string) globalFlags {
	result := defaultFlags

	if val, ok := env["BROWSERENV_CONFIG"]; ok {
		result.configFilePath = val
	}
	if val, ok := env["BROWSERENV_LOG_OUTPUT"]; ok {
		result.logOutput = val
	}
	if val, ok := env["BROWSERENV_LOG_FORMAT"]; ok {
		result.logFormat = val
	}
	if env["BROWSERENV_NO_COLOR"] != "" {
		result.noColor = true
	}
	// Support https://no-color.org/, even an empty value should disable the
	// color output.
	if _, ok := env["NO_COLOR"]; ok {
		result.noColor = true
	}
	return result
}

func buildEnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	return env
}

// A writer that syncs writes with a mutex.
type consoleWriter struct {
	io.Writer
	isTTY bool
	mutex *sync.Mutex
}

func (w *consoleWriter) Write(p []byte) (n int, err error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.Writer.Write(p)
}
