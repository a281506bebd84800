// Package env holds the environment lookups browserenv depends on.
package env

import (
	"os"
	"strings"
)

// LookupFunc defines a function to look up a key from the environment.
type LookupFunc func(key string) (string, bool)

// Lookup is the LookupFunc backed by the process environment.
func Lookup(key string) (string, bool) {
	return os.LookupEnv(key) //nolint:forbidigo
}

// EmptyLookup is a LookupFunc that never finds anything.
func EmptyLookup(string) (string, bool) { return "", false }

// Map returns a LookupFunc reading from m.
func Map(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// ExecutablePathKeys are the environment variables consulted, in order, for
// an explicit browser executable. They let containers point at browsers
// that are not on PATH.
var ExecutablePathKeys = []string{ //nolint:gochecknoglobals
	"BROWSER_EXECUTABLE_PATH",
	"CHROME_EXECUTABLE_PATH",
	"CHROME_PATH",
	"CHROMIUM_PATH",
	"BRAVE_EXECUTABLE_PATH",
	"HELIUM_EXECUTABLE_PATH",
}

// ExecutablePath returns the first non-blank value of ExecutablePathKeys.
func ExecutablePath(envLookup LookupFunc) (string, bool) {
	for _, k := range ExecutablePathKeys {
		v, ok := envLookup(k)
		if !ok {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	return "", false
}

// SearchPath splits the PATH variable into its directories.
func SearchPath(envLookup LookupFunc) []string {
	p, ok := envLookup("PATH")
	if !ok || p == "" {
		return nil
	}
	return strings.Split(p, string(os.PathListSeparator))
}
