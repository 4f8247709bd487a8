package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newShowRefCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-ref [prefix]",
		Short: "List references and the ids they resolve to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			refs, err := r.ListRefs(prefix)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(refs))
			for name := range refs {
				names = append(names, name)
			}
			sort.Strings(names)
			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintf(out, "%s refs/%s\n", refs[name], name)
			}
			return nil
		},
	}
}
