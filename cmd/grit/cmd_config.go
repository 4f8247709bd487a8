package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config <key> [value]",
		Short: "Get or set a repository option in .git/config",
		Long:  "Keys are section.name or section.subsection.name, for example remote.origin.url.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			if len(args) == 2 {
				return r.ConfigSet(args[0], args[1])
			}
			v, err := r.ConfigGet(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}
