package chromium

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/liuxd6825/browserenv/errext"
)

// defaultArgs are passed to every browser. Their order does not matter.
var defaultArgs = []string{ //nolint:gochecknoglobals
	"--remote-allow-origins=*",
	"--no-first-run",
	"--no-service-autorun",
	"--no-default-browser-check",
	"--homepage=about:blank",
	"--no-pings",
	"--password-store=basic",
	"--disable-infobars",
	"--disable-breakpad",
	"--disable-dev-shm-usage",
	"--disable-session-crashed-bubble",
	"--disable-search-engine-choice-screen",
}

const (
	disabledFeatures          = "IsolateOrigins,site-per-process"
	extensionSwitchFeature    = "DisableLoadExtensionCommandLineSwitch"
	loadExtensionFlag         = "--load-extension"
	unsafeExtensionDebugFlag  = "--enable-unsafe-extension-debugging"
	disableSiteIsolationTrial = "--disable-site-isolation-trials"
)

// reservedArgs map the substrings AddArgument refuses to the option that
// controls the corresponding flag instead.
var reservedArgs = []struct { //nolint:gochecknoglobals
	substr string
	option string
}{
	{"headless", "Headless"},
	{"data-dir", "UserDataDir"},
	{"data_dir", "UserDataDir"},
	{"no-sandbox", "Sandbox"},
	{"no_sandbox", "Sandbox"},
	{"lang", "Lang"},
}

// DefaultArgs returns the flags every browser is started with.
func DefaultArgs() []string {
	return slices.Clone(defaultArgs)
}

// checkArgument rejects flags that must be set through a dedicated option.
func checkArgument(arg string) error {
	lower := strings.ToLower(arg)
	for _, r := range reservedArgs {
		if strings.Contains(lower, r.substr) {
			return errext.Hintf(
				fmt.Errorf("browser flag %q: %w", arg, errext.ErrInvalidArgument),
				"use the %s option instead of passing the flag directly", r.option,
			)
		}
	}
	return nil
}

// argState is what the browser command line is derived from.
type argState struct {
	userArgs    []string
	userDataDir string
	extensions  []string
	expert      bool
	headless    bool
	sandbox     bool
	host        string
	port        int64
	lang        string
}

// buildArgs assembles the command line. The result only depends on s, and
// no flag appears twice in it.
func buildArgs(s argState) []string {
	args := make([]string, 0, len(defaultArgs)+len(s.userArgs)+16)
	args = append(args, defaultArgs...)
	args = append(args, s.userArgs...)
	sort.Strings(args)

	args = append(args,
		"--user-data-dir="+s.userDataDir,
		"--disable-session-crashed-bubble",
	)

	features := disabledFeatures
	if len(s.extensions) > 0 {
		features += "," + extensionSwitchFeature
	}
	args = append(args, "--disable-features="+features)

	if len(s.extensions) > 0 {
		if !hasPrefix(s.userArgs, loadExtensionFlag) {
			args = append(args, loadExtensionFlag+"="+strings.Join(s.extensions, ","))
		}
		if !hasPrefix(s.userArgs, unsafeExtensionDebugFlag) {
			args = append(args, unsafeExtensionDebugFlag)
		}
	}
	if s.expert {
		args = append(args, disableSiteIsolationTrial)
	}
	for _, a := range s.userArgs {
		if !slices.Contains(args, a) {
			args = append(args, a)
		}
	}

	if s.headless {
		args = append(args, "--headless=new")
	}
	if !s.sandbox {
		args = append(args, "--no-sandbox")
	}
	if s.host != "" {
		args = append(args, "--remote-debugging-host="+s.host)
	}
	if s.port != 0 {
		args = append(args, "--remote-debugging-port="+strconv.FormatInt(s.port, 10))
	}
	if s.lang != "" {
		args = append(args, "--lang="+s.lang)
	}

	return dedupe(args)
}

func hasPrefix(args []string, prefix string) bool {
	for _, a := range args {
		if strings.HasPrefix(a, prefix) {
			return true
		}
	}
	return false
}

// dedupe drops repeated flags, keeping the first occurrence.
func dedupe(args []string) []string {
	seen := make(map[string]struct{}, len(args))
	out := args[:0]
	for _, a := range args {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
