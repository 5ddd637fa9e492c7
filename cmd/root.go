/*
 *
 * shadowfold - a self-hiding layered resource resolver
 * Copyright (C) 2026 The shadowfold Authors
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

// Package cmd implements the shadowfold CLI, a small inspection tool around
// the resolution library: it answers "which address would win for this name"
// for a given bundle, override and suffix setup.
package cmd

import (
	"errors"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/foldlib/shadowfold/errext"
	"github.com/foldlib/shadowfold/errext/exitcodes"
	"github.com/foldlib/shadowfold/loader"
)

type globalFlags struct {
	suffix     string
	selfPath   string
	overrides  []string
	exclusions []string
	verbose    bool
	noColor    bool
}

// rootCommand keeps all the fields needed for the main shadowfold command.
type rootCommand struct {
	cmd    *cobra.Command
	logger *logrus.Logger
	flags  globalFlags
	stdout io.Writer
}

func newRootCommand() *rootCommand {
	c := &rootCommand{
		logger: logrus.New(),
		stdout: colorable.NewColorableStdout(),
	}
	c.logger.SetOutput(colorable.NewColorableStderr())

	rootCmd := &cobra.Command{
		Use:           "shadowfold",
		Short:         "a self-hiding layered resource resolver",
		Long:          "shadowfold resolves resource names across override locations, a bundle and a delegate,\nhiding the bundle's own units behind a shadow suffix.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.flags.verbose {
				c.logger.SetLevel(logrus.DebugLevel)
			}
			if c.flags.noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
				color.NoColor = true
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&c.flags.suffix, "suffix", "s", "", "shadow suffix of the deployment")
	pf.StringVar(&c.flags.selfPath, "self", "", "path of the resolver's own bundle (directory or archive)")
	pf.StringArrayVar(&c.flags.overrides, "override", nil, "override location, may be given more than once")
	pf.StringArrayVar(&c.flags.exclusions, "exclude", nil, "unit name prefix excluded from delegate fallback")
	pf.BoolVarP(&c.flags.verbose, "verbose", "v", false, "enable verbose logging")
	pf.BoolVar(&c.flags.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(getResolveCmd(c), getListCmd(c), getEntriesCmd(c))
	c.cmd = rootCmd
	return c
}

// newLoader builds a loader from the persistent flags and the environment.
// Flag overrides rank ahead of environment-configured ones.
func (c *rootCommand) newLoader() (*loader.Loader, error) {
	cfg, err := loader.GetConsolidatedConfig(c.flags.suffix, os.LookupEnv)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	suffix := c.flags.suffix
	if suffix == "" {
		suffix = cfg.Suffix.String
	}

	l, err := loader.New(loader.Options{
		ShadowSuffix: suffix,
		SelfPath:     c.flags.selfPath,
		Overrides:    c.flags.overrides,
		Exclusions:   c.flags.exclusions,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	if cfg.Overrides.Valid {
		if err := l.ApplyOverrides(loader.ParseOverrideList(cfg.Overrides.String)); err != nil {
			_ = l.Close()
			return nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
		}
	}
	return l, nil
}

// Execute runs the CLI and exits the process with the error's exit code.
func Execute() {
	c := newRootCommand()
	if err := c.cmd.Execute(); err != nil {
		exitCode := int(exitcodes.GenericError)
		var ecerr errext.HasExitCode
		if errors.As(err, &ecerr) {
			exitCode = int(ecerr.ExitCode())
		}
		c.logger.Error(err.Error())
		os.Exit(exitCode)
	}
}
