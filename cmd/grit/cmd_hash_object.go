package main

import (
	"fmt"
	"io"
	"os"

	"github.com/odvcencio/grit/pkg/object"
	"github.com/spf13/cobra"
)

func newHashObjectCmd() *cobra.Command {
	var write bool
	var typeName string
	var stdin bool

	cmd := &cobra.Command{
		Use:   "hash-object [-w] [-t type] (--stdin | <file>)",
		Short: "Compute an object id and optionally store the object",
		Args: func(cmd *cobra.Command, args []string) error {
			if stdin {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			objType, err := object.ParseObjectType(typeName)
			if err != nil {
				return err
			}

			var data []byte
			if stdin {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if err := checkObjectData(objType, data); err != nil {
				return err
			}

			h := object.HashObject(objType, data)
			if write {
				r, err := openRepo()
				if err != nil {
					return err
				}
				if h, err = r.Store.Write(objType, data); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "store the object in the repository")
	cmd.Flags().StringVarP(&typeName, "type", "t", string(object.TypeBlob), "object type")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "read the object from standard input")
	return cmd
}

// checkObjectData refuses to hash tree and commit payloads that would not
// parse back.
func checkObjectData(t object.ObjectType, data []byte) error {
	var err error
	switch t {
	case object.TypeTree:
		_, err = object.UnmarshalTree(data)
	case object.TypeCommit:
		_, err = object.UnmarshalCommit(data)
	}
	if err != nil {
		return fmt.Errorf("hash-object: invalid %s: %w", t, err)
	}
	return nil
}
