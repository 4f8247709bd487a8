package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newReflogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reflog [ref]",
		Short: "Show ref update history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			ref := "HEAD"
			if len(args) == 1 {
				ref = args[0]
				if ref != "HEAD" && !strings.HasPrefix(ref, "refs/") {
					ref = "refs/heads/" + ref
				}
			}
			entries, err := r.ReadReflog(ref, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				ts := e.Who.When.UTC().Format(time.RFC3339)
				fmt.Fprintf(out, "%s %s %s %s\n", e.NewHash.Short(), ts, ref, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	return cmd
}
