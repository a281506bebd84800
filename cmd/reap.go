package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/browserenv/chromium"
	"github.com/liuxd6825/browserenv/reaper"
)

type cmdReap struct {
	gs *globalState
}

func (c *cmdReap) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.Bool("singletons", true, "remove stale singleton socket directories")
	flags.Bool("legacy", true, "remove orphaned legacy profiles")
	flags.Int64("retries", reaper.DefaultRetries, "probes of a singleton socket before it counts as stale")
	flags.Duration("retry-delay", reaper.DefaultRetryDelay, "pause between singleton probes")
	flags.Duration("min-age", reaper.DefaultMinAge, "minimum age of a legacy profile before it can be removed")
	return flags
}

func (c *cmdReap) flagOptions(flags *pflag.FlagSet) chromium.Options {
	return chromium.Options{
		ReapSingletons:     getNullBool(flags, "singletons"),
		ReapLegacyProfiles: getNullBool(flags, "legacy"),
		ReapRetries:        getNullInt64(flags, "retries"),
		ReapRetryDelay:     getNullDuration(flags, "retry-delay"),
		LegacyMinAge:       getNullDuration(flags, "min-age"),
	}
}

func (c *cmdReap) run(cmd *cobra.Command, _ []string) error {
	opts, err := loadOptions(c.gs, c.flagOptions(cmd.Flags()))
	if err != nil {
		return err
	}
	logger, err := newLogger(c.gs, opts)
	if err != nil {
		return err
	}
	ns := newNamespace(c.gs, logger)

	if opts.ReapSingletons.Bool {
		reaper.NewSingleton(ns, logger).Reap(int(opts.ReapRetries.Int64), opts.ReapRetryDelay.TimeDuration())
	}
	if opts.ReapLegacyProfiles.Bool {
		reaper.NewLegacy(ns, c.gs.procs, logger).Reap(opts.LegacyMinAge.TimeDuration())
	}
	return nil
}

func getCmdReap(gs *globalState) *cobra.Command {
	c := &cmdReap{gs: gs}

	reapCmd := &cobra.Command{
		Use:   "reap",
		Short: "Remove stale browser artifacts",
		Long: `Remove stale browser artifacts from the temporary directory.

Singleton socket directories whose socket no longer accepts connections are
removed, as are legacy profiles that are old enough and not referenced by any
running process. Removal is best effort: failures are logged and skipped.`,
		Example: `
  # Remove everything stale with the default settings
  browserenv reap

  # Only clean up singleton sockets, probing them twice
  browserenv reap --legacy=false --retries 2`[1:],
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	reapCmd.Flags().AddFlagSet(c.flagSet())
	return reapCmd
}
