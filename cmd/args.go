package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/browserenv/chromium"
	"github.com/liuxd6825/browserenv/env"
	"github.com/liuxd6825/browserenv/errext"
)

type cmdArgs struct {
	gs *globalState

	keep   bool
	asJSON bool
}

// argsOutput is what `args --json` prints.
type argsOutput struct {
	Executable  string            `json:"executable,omitempty"`
	UserDataDir string            `json:"userDataDir"`
	Temporary   bool              `json:"temporary"`
	Args        []string          `json:"args"`
	Extra       map[string]string `json:"extra,omitempty"`
}

func (c *cmdArgs) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.Bool("headless", false, "start the browser without a window")
	flags.Bool("no-sandbox", false, "disable the browser sandbox")
	flags.String("lang", chromium.DefaultLang, "browser UI language")
	flags.String("host", "", "host of an already running browser to attach to")
	flags.Int64("port", 0, "debugging port of the browser")
	flags.Bool("expert", false, "disable site isolation trials and web security")
	flags.String("user-data-dir", "", "profile directory to use instead of a temporary one")
	flags.String("executable-path", "", "browser executable, searched for when empty")
	flags.StringArray("arg", nil, "extra browser flag, can be repeated")
	flags.StringArray("extension", nil, "unpacked extension directory or .crx/.zip file, can be repeated")
	flags.BoolVar(&c.keep, "keep", false, "keep the temporary profile and staged extensions on exit")
	flags.BoolVar(&c.asJSON, "json", false, "print the result as JSON")
	return flags
}

func (c *cmdArgs) flagOptions(flags *pflag.FlagSet) (chromium.Options, error) {
	opts := chromium.Options{
		Headless:       getNullBool(flags, "headless"),
		NoSandbox:      getNullBool(flags, "no-sandbox"),
		Lang:           getNullString(flags, "lang"),
		Host:           getNullString(flags, "host"),
		Port:           getNullInt64(flags, "port"),
		Expert:         getNullBool(flags, "expert"),
		UserDataDir:    getNullString(flags, "user-data-dir"),
		ExecutablePath: getNullString(flags, "executable-path"),
	}
	var err error
	if opts.Args, err = flags.GetStringArray("arg"); err != nil {
		return opts, err
	}
	if opts.Extensions, err = flags.GetStringArray("extension"); err != nil {
		return opts, err
	}
	return opts, nil
}

func (c *cmdArgs) run(cmd *cobra.Command, _ []string) error {
	flagOpts, err := c.flagOptions(cmd.Flags())
	if err != nil {
		return err
	}
	opts, err := loadOptions(c.gs, flagOpts)
	if err != nil {
		return err
	}
	logger, err := newLogger(c.gs, opts)
	if err != nil {
		return err
	}

	cfgOpts := []chromium.ConfigOption{
		chromium.WithNamespace(newNamespace(c.gs, logger)),
		chromium.WithLogger(logger),
		chromium.WithEnv(env.Map(c.gs.envVars)),
		chromium.WithProcessTable(c.gs.procs),
	}
	if c.gs.isRoot != nil {
		cfgOpts = append(cfgOpts, chromium.WithRootCheck(c.gs.isRoot))
	}
	cfg, err := chromium.NewConfig(opts, cfgOpts...)
	if err != nil {
		return err
	}
	if !c.keep {
		defer cfg.Cleanup()
	}

	args, err := cfg.Prepare()
	if err != nil {
		return err
	}

	execPath, err := cfg.ExecutablePath()
	if err != nil {
		msg, fields := errext.Format(err)
		c.gs.logger.WithFields(fields).Warn(msg)
	}

	if c.asJSON {
		out, err := json.MarshalIndent(argsOutput{
			Executable:  execPath,
			UserDataDir: cfg.UserDataDir(),
			Temporary:   !cfg.UsesCustomDataDir(),
			Args:        args,
			Extra:       cfg.Extra,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode the browser arguments: %w", err)
		}
		printToStdout(c.gs, string(out)+"\n")
		return nil
	}

	var sb strings.Builder
	if execPath != "" {
		sb.WriteString(execPath + "\n")
	}
	for _, arg := range args {
		sb.WriteString(arg + "\n")
	}
	printToStdout(c.gs, sb.String())
	return nil
}

func getCmdArgs(gs *globalState) *cobra.Command {
	c := &cmdArgs{gs: gs}

	argsCmd := &cobra.Command{
		Use:   "args",
		Short: "Prepare a browser session and print its command line",
		Long: `Prepare a browser session and print its command line, one flag per line.

Stale artifacts are reaped, the profile directory is created and packaged
extensions are unpacked. Unless --keep is given, the temporary profile and
the staged extensions are removed again before exiting.`,
		Example: `
  # Print the flags for a headless session
  browserenv args --headless --arg=--window-size=1280,720

  # Keep the temporary profile around for a browser started by a script
  browserenv args --keep --json`[1:],
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	argsCmd.Flags().AddFlagSet(c.flagSet())
	return argsCmd
}
