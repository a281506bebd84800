package chromium

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"

	"github.com/liuxd6825/browserenv/env"
	"github.com/liuxd6825/browserenv/errext"
)

// executableNames are looked up in every PATH directory.
var executableNames = []string{ //nolint:gochecknoglobals
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"google-chrome-stable",
}

var macBundles = []string{ //nolint:gochecknoglobals
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

//nolint:gochecknoglobals
var (
	windowsRootKeys = []string{"PROGRAMFILES", "PROGRAMFILES(X86)", "LOCALAPPDATA", "PROGRAMW6432"}
	windowsAppDirs  = []string{
		`Google\Chrome\Application`,
		`Google\Chrome Beta\Application`,
		`Google\Chrome Canary\Application`,
	}
)

// FindExecutable returns the browser executable to start. An executable
// named by one of env.ExecutablePathKeys wins; otherwise the shortest path
// among the well known install locations is picked.
func FindExecutable(fs afero.Fs, envLookup env.LookupFunc) (string, error) {
	return findExecutable(fs, envLookup, runtime.GOOS)
}

func findExecutable(fs afero.Fs, envLookup env.LookupFunc, goos string) (string, error) {
	if p, ok := env.ExecutablePath(envLookup); ok && isExecutable(fs, p, goos) {
		return p, nil
	}

	var winner string
	for _, c := range executableCandidates(envLookup, goos) {
		if !isExecutable(fs, c, goos) {
			continue
		}
		if winner == "" || len(c) < len(winner) {
			winner = c
		}
	}
	if winner == "" {
		return "", errext.WithHint(
			fmt.Errorf("browser executable: %w", errext.ErrNotFound),
			"install Chrome or Chromium, or set BROWSERENV_EXECUTABLE_PATH to the browser binary",
		)
	}
	return filepath.Clean(winner), nil
}

func executableCandidates(envLookup env.LookupFunc, goos string) []string {
	var candidates []string
	if goos == "windows" {
		for _, k := range windowsRootKeys {
			root, ok := envLookup(k)
			if !ok || root == "" {
				continue
			}
			for _, d := range windowsAppDirs {
				candidates = append(candidates, root+`\`+d+`\chrome.exe`)
			}
		}
		return candidates
	}

	for _, dir := range env.SearchPath(envLookup) {
		if dir == "" {
			continue
		}
		for _, name := range executableNames {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}
	if goos == "darwin" {
		candidates = append(candidates, macBundles...)
	}
	return candidates
}

// isExecutable reports whether path is a regular file the user may run.
// Outside of Windows any execute bit is required.
func isExecutable(fs afero.Fs, path, goos string) bool {
	fi, err := fs.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	return goos == "windows" || fi.Mode().Perm()&0o111 != 0
}
