package main

import (
	"fmt"

	"github.com/odvcencio/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newLsTreeCmd() *cobra.Command {
	var nameOnly, recursive bool

	cmd := &cobra.Command{
		Use:   "ls-tree [--name-only] [-r] <tree-ish>",
		Short: "List the contents of a tree object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			treeID, err := resolveTreeish(r, args[0])
			if err != nil {
				return err
			}

			var entries []repo.TreeFileEntry
			if recursive {
				entries, err = repo.FlattenTree(r.Store, treeID)
				if err != nil {
					return err
				}
			} else {
				tree, err := r.Store.ReadTree(treeID)
				if err != nil {
					return err
				}
				for _, item := range tree.Items {
					entries = append(entries, repo.TreeFileEntry{Path: item.Name, Mode: item.Mode, Hash: item.Hash})
				}
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				if nameOnly {
					fmt.Fprintln(out, e.Path)
					continue
				}
				fmt.Fprintln(out, formatTreeLine(e.Mode, e.Hash, e.Path))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&nameOnly, "name-only", false, "list only entry names")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "recurse into subtrees")
	return cmd
}
