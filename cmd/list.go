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
)

func getListCmd(c *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "list <name>",
		Short: "Print every address serving a resource name, in precedence order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.newLoader()
			if err != nil {
				return err
			}
			defer func() { _ = l.Close() }()

			name := args[0]
			addrs := l.AllResourcesByName(name)
			if len(addrs) == 0 {
				notFoundColor.Fprintf(c.stdout, "%s: not found\n", name)
				return errext.WithExitCodeIfNone(
					fmt.Errorf("no layer resolves %q", name), exitcodes.ResourceNotFound)
			}
			for _, addr := range addrs {
				fmt.Fprintln(c.stdout, addr.String())
			}
			return nil
		},
	}
}
