package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/liuxd6825/browserenv/chromium"
)

type cmdPaths struct {
	gs *globalState
}

func (c *cmdPaths) run(_ *cobra.Command, _ []string) error {
	opts, err := loadOptions(c.gs, chromium.Options{})
	if err != nil {
		return err
	}
	logger, err := newLogger(c.gs, opts)
	if err != nil {
		return err
	}
	ns := newNamespace(c.gs, logger)

	w := tabwriter.NewWriter(c.gs.stdOut, 0, 0, 1, ' ', 0)
	for _, row := range [][2]string{
		{"namespace", ns.Base()},
		{"profiles", ns.Profiles()},
		{"extensions", ns.Extensions()},
	} {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return w.Flush()
}

func getCmdPaths(gs *globalState) *cobra.Command {
	c := &cmdPaths{gs: gs}

	return &cobra.Command{
		Use:   "paths",
		Short: "Show the directories browserenv manages",
		Long: `Show the namespace directory under the temporary directory and the
subdirectories used for temporary profiles and staged extensions.`,
		Args: cobra.NoArgs,
		RunE: c.run,
	}
}
