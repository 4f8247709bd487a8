package main

import (
	"fmt"
	"os"

	"github.com/odvcencio/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newWriteTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write-tree",
		Short: "Record the working directory as tree objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			h, ok, err := repo.BuildTree(r.Store, os.DirFS(r.RootDir), ".")
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("write-tree: nothing to record in %s", r.RootDir)
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}
