package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/grit/pkg/object"
	"github.com/spf13/cobra"
)

func newCommitTreeCmd(e *env) *cobra.Command {
	var parents []string
	var messages []string

	cmd := &cobra.Command{
		Use:   "commit-tree <tree> [-p <parent>]... -m <message>",
		Short: "Create a commit object for a tree",
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

			var parentIDs []object.Hash
			for _, p := range parents {
				h, err := resolveRevision(r, p)
				if err != nil {
					return err
				}
				if _, err := r.Store.ReadCommit(h); err != nil {
					return fmt.Errorf("parent %s: %w", p, err)
				}
				parentIDs = append(parentIDs, h)
			}

			who, err := e.cfg.identity(time.Now())
			if err != nil {
				return err
			}
			c := &object.Commit{
				TreeHash:  treeID,
				Author:    who,
				Committer: who,
				Message:   joinMessages(messages),
			}
			if len(parentIDs) > 0 {
				c.ParentHash = parentIDs[0]
				c.ExtraParents = parentIDs[1:]
			}

			h, err := r.Store.WriteCommit(c)
			if err != nil {
				return err
			}
			e.logger.Debug("commit written", "id", h, "tree", treeID, "parents", len(parentIDs))
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&parents, "parent", "p", nil, "parent commit (repeatable)")
	cmd.Flags().StringArrayVarP(&messages, "message", "m", nil, "commit message paragraph (repeatable)")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

// joinMessages separates -m paragraphs with a blank line.
func joinMessages(paragraphs []string) string {
	trimmed := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		trimmed = append(trimmed, strings.TrimRight(p, "\n"))
	}
	return strings.Join(trimmed, "\n\n")
}
