/*
 *
 * browserenv - browser process resource lifecycle manager
 * Copyright (C) 2024 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package cmd implements the browserenv command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/browserenv/errext"
	"github.com/liuxd6825/browserenv/errext/exitcodes"
	"github.com/liuxd6825/browserenv/log"
)

const waitLoggerCloseTimeout = time.Second * 5

// BannerColor is the color of the short description in the help output.
var BannerColor = color.New(color.FgCyan) //nolint:gochecknoglobals

// This is to keep all fields needed for the main/root browserenv command
type rootCommand struct {
	gs *globalState

	cmd           *cobra.Command
	loggerStopped <-chan struct{}
	loggerIsFile  bool
}

func newRootCommand(gs *globalState) *rootCommand {
	c := &rootCommand{
		gs: gs,
	}
	// the base command when called without any subcommands.
	rootCmd := &cobra.Command{
		Use:   "browserenv",
		Short: "browser process resource lifecycle manager",
		Long: BannerColor.Sprint("browserenv") + " prepares, launches the arguments for, and cleans up after\n" +
			"Chromium based browser sessions: temporary profiles, staged extensions,\n" +
			"stale singleton sockets and orphaned legacy profiles.",
		Version:           fullVersion(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
	}

	rootCmd.PersistentFlags().AddFlagSet(rootCmdPersistentFlagSet(gs))
	rootCmd.SetArgs(gs.args[1:])
	rootCmd.SetOut(gs.stdOut)
	rootCmd.SetErr(gs.stdErr)

	subCommands := []func(*globalState) *cobra.Command{
		getCmdArgs, getCmdPaths, getCmdReap, getCmdVersion,
	}

	for _, sc := range subCommands {
		rootCmd.AddCommand(sc(gs))
	}

	c.cmd = rootCmd
	return c
}

func (c *rootCommand) persistentPreRunE(_ *cobra.Command, _ []string) error {
	var err error

	c.loggerStopped, err = c.setupLoggers()
	if err != nil {
		return err
	}
	select {
	case <-c.loggerStopped:
	default:
		c.loggerIsFile = true
	}

	c.gs.logger.Debugf("browserenv version: v%s", fullVersion())
	return nil
}

func (c *rootCommand) execute() {
	ctx, cancel := context.WithCancel(c.gs.ctx)
	defer cancel()
	c.gs.ctx = ctx

	err := c.cmd.Execute()
	if err == nil {
		cancel()
		c.waitFileLogger()
		return
	}

	exitCode := errext.ExitCodeOf(err)
	errText, fields := errext.Format(err)
	c.gs.logger.WithFields(fields).Error(errText)
	if c.loggerIsFile {
		c.gs.fallbackLogger.WithFields(fields).Error(errText)
	}

	cancel()
	c.waitFileLogger()

	c.gs.osExit(int(exitCode))
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	gs := newGlobalState(context.Background())

	newRootCommand(gs).execute()
}

func (c *rootCommand) waitFileLogger() {
	if !c.loggerIsFile {
		return
	}
	select {
	case <-c.loggerStopped:
	case <-time.After(waitLoggerCloseTimeout):
		c.gs.fallbackLogger.Errorf("The log file didn't finish in %s", waitLoggerCloseTimeout)
	}
}

func rootCmdPersistentFlagSet(gs *globalState) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	// gs.flags may already carry values from the environment, so they are
	// both destination and default; DefValue keeps --help showing the real
	// defaults.

	flags.StringVar(&gs.flags.logOutput, "log-output", gs.flags.logOutput,
		"change the output for browserenv logs, possible values are stderr,stdout,none,file[=./path.fileformat]")
	flags.Lookup("log-output").DefValue = gs.defaultFlags.logOutput

	flags.StringVar(&gs.flags.logFormat, "log-format", gs.flags.logFormat, "log output format: text, json or raw")
	flags.Lookup("log-format").DefValue = gs.defaultFlags.logFormat

	flags.StringVarP(&gs.flags.configFilePath, "config", "c", gs.flags.configFilePath, "YAML or JSON config file")
	flags.Lookup("config").DefValue = gs.defaultFlags.configFilePath
	must(cobra.MarkFlagFilename(flags, "config"))

	flags.BoolVar(&gs.flags.noColor, "no-color", gs.flags.noColor, "disable colored output")
	flags.Lookup("no-color").DefValue = fmt.Sprint(gs.defaultFlags.noColor)

	flags.BoolVarP(&gs.flags.verbose, "verbose", "v", gs.defaultFlags.verbose, "enable verbose logging")
	return flags
}

// RawFormatter it does nothing with the message just prints it
type RawFormatter struct{}

// Format renders a single log entry
func (f RawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

// The returned channel will be closed when the logger has finished flushing and pushing logs after
// the provided context is closed. It is closed if the logger isn't buffering and sending messages
// asynchronously
func (c *rootCommand) setupLoggers() (<-chan struct{}, error) {
	ch := make(chan struct{})
	close(ch)

	if c.gs.flags.noColor {
		c.gs.stdOut.Writer = colorable.NewNonColorable(c.gs.stdOut.Writer)
		c.gs.stdErr.Writer = colorable.NewNonColorable(c.gs.stdErr.Writer)
	}

	if c.gs.flags.verbose {
		c.gs.logger.SetLevel(logrus.DebugLevel)
	}

	switch line := c.gs.flags.logOutput; {
	case line == "stderr":
		c.gs.logger.SetOutput(c.gs.stdErr)
	case line == "stdout":
		c.gs.logger.SetOutput(c.gs.stdOut)
	case line == "none":
		c.gs.logger.SetOutput(io.Discard)
	case strings.HasPrefix(line, "file"):
		done := make(chan struct{})
		hook, err := log.FileHookFromConfigLine(c.gs.ctx, c.gs.fs, c.gs.fallbackLogger, line, done)
		if err != nil {
			return ch, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
		}
		c.gs.logger.AddHook(hook)
		c.gs.logger.SetOutput(io.Discard)
		ch = done
	default:
		return ch, errext.WithExitCodeIfNone(
			errors.New("unsupported log output '"+line+"'"), exitcodes.InvalidConfig,
		)
	}

	switch c.gs.flags.logFormat {
	case "raw":
		c.gs.logger.SetFormatter(&RawFormatter{})
		c.gs.logger.Debug("Logger format: RAW")
	case "json":
		c.gs.logger.SetFormatter(&logrus.JSONFormatter{})
		c.gs.logger.Debug("Logger format: JSON")
	default:
		c.gs.logger.SetFormatter(&logrus.TextFormatter{
			ForceColors: c.gs.stdErr.isTTY, DisableColors: c.gs.flags.noColor,
		})
		c.gs.logger.Debug("Logger format: TEXT")
	}
	return ch, nil
}
