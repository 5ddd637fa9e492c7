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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foldlib/shadowfold/errext"
	"github.com/foldlib/shadowfold/errext/exitcodes"
	"github.com/foldlib/shadowfold/lib/fsext"
	"github.com/foldlib/shadowfold/listing"
)

func getEntriesCmd(c *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "entries <archive>",
		Short: "Print the cached entry listing of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := listing.Default.NewHandle(fsext.NewOsFs(), c.logger)
			defer func() { _ = h.Close() }()

			path := fsext.Canonical(args[0])
			names := h.Entries(path)
			if len(names) == 0 {
				notFoundColor.Fprintf(c.stdout, "%s: empty or unreadable archive\n", path)
				return errext.WithExitCodeIfNone(
					fmt.Errorf("archive %q has no entries", path), exitcodes.ResourceNotFound)
			}
			for _, name := range names {
				fmt.Fprintln(c.stdout, name)
			}
			return nil
		},
	}
}
