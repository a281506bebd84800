package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/browserenv/reaper"
)

type bufferStringer interface {
	io.ReadWriter
	fmt.Stringer
	Bytes() []byte
}

type globalTestState struct {
	*globalState
	cancel func()

	stdOut, stdErr bufferStringer
	loggerHook     *test.Hook

	processes string

	expectedExitCode int
}

// A thread-safe buffer implementation.
type safeBuffer struct {
	b bytes.Buffer
	m sync.RWMutex
}

func (b *safeBuffer) Read(p []byte) (n int, err error) {
	b.m.RLock()
	defer b.m.RUnlock()
	return b.b.Read(p)
}

func (b *safeBuffer) Write(p []byte) (n int, err error) {
	b.m.Lock()
	defer b.m.Unlock()
	return b.b.Write(p)
}

func (b *safeBuffer) String() string {
	b.m.RLock()
	defer b.m.RUnlock()
	return b.b.String()
}

func (b *safeBuffer) Bytes() []byte {
	b.m.RLock()
	defer b.m.RUnlock()
	return b.b.Bytes()
}

func newGlobalTestState(t *testing.T) *globalTestState {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/tmp", 0o755))

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)

	ts := &globalTestState{
		cancel:     cancel,
		loggerHook: hook,
		stdOut:     new(safeBuffer),
		stdErr:     new(safeBuffer),
	}

	osExitCalled := false
	defaultOsExitHandle := func(exitCode int) {
		cancel()
		require.Equal(t, ts.expectedExitCode, exitCode)
		osExitCalled = true
	}

	t.Cleanup(func() {
		if ts.expectedExitCode > 0 {
			// Ensure that, if we expected to receive an error, our `os.Exit()` mock
			// function was actually called.
			assert.Truef(t, osExitCalled, "expected exit code %d, but the os.Exit() mock was not called", ts.expectedExitCode)
		}
	})

	outMutex := &sync.Mutex{}
	defaultFlags := getDefaultFlags("/home/tester/.config")
	ts.globalState = &globalState{
		ctx:            ctx,
		fs:             fs,
		args:           []string{},
		envVars:        map[string]string{},
		tempRoot:       "/tmp",
		defaultFlags:   defaultFlags,
		flags:          defaultFlags,
		outMutex:       outMutex,
		stdOut:         &consoleWriter{ts.stdOut, false, outMutex},
		stdErr:         &consoleWriter{ts.stdErr, false, outMutex},
		logger:         logger,
		fallbackLogger: logger,
		procs:          reaper.ProcessTableFunc(func() string { return ts.processes }),
		isRoot:         func() bool { return false },
		osExit:         defaultOsExitHandle,
	}
	return ts
}

func (ts *globalTestState) run(args ...string) {
	ts.args = append([]string{"browserenv"}, args...)
	newRootCommand(ts.globalState).execute()
}
