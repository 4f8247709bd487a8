package main

import (
	"fmt"

	"github.com/odvcencio/grit/pkg/object"
	"github.com/spf13/cobra"
)

func newCatFileCmd() *cobra.Command {
	var pretty, showType, showSize bool

	cmd := &cobra.Command{
		Use:   "cat-file (-p | -t | -s) <object>",
		Short: "Show the content, type or size of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			h, err := resolveRevision(r, args[0])
			if err != nil {
				return err
			}
			obj, err := r.Store.Read(h)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case showType:
				fmt.Fprintln(out, obj.Type)
			case showSize:
				fmt.Fprintln(out, len(obj.Data))
			case obj.Type == object.TypeTree:
				tree, err := object.UnmarshalTree(obj.Data)
				if err != nil {
					return fmt.Errorf("read tree %s: %w", h, err)
				}
				for _, item := range tree.Items {
					fmt.Fprintln(out, formatTreeLine(item.Mode, item.Hash, item.Name))
				}
			default:
				_, err = out.Write(obj.Data)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "pretty-print the object content")
	cmd.Flags().BoolVarP(&showType, "type", "t", false, "show the object type")
	cmd.Flags().BoolVarP(&showSize, "size", "s", false, "show the object size in bytes")
	cmd.MarkFlagsOneRequired("pretty", "type", "size")
	cmd.MarkFlagsMutuallyExclusive("pretty", "type", "size")
	return cmd
}
