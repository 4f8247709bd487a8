package main

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/grit/pkg/remote"
	"github.com/odvcencio/grit/pkg/repo"
	"github.com/spf13/cobra"
)

func newCloneCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clone <url> [directory]",
		Short: "Clone the main branch of a repository over smart HTTP",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			dest := ""
			if len(args) == 2 {
				dest = args[1]
			} else {
				var err error
				if dest, err = defaultCloneDir(source); err != nil {
					return err
				}
			}
			absDest, err := filepath.Abs(dest)
			if err != nil {
				return fmt.Errorf("resolve destination: %w", err)
			}

			who, err := e.cfg.identity(time.Now())
			if err != nil {
				// The reflog falls back to a placeholder identity.
				who.When = time.Now()
			}
			transport := remote.NewHTTPTransport(e.cfg.httpOptions(e.logger))
			res, err := repo.Clone(cmd.Context(), repo.CloneOptions{
				URL:      source,
				Dest:     absDest,
				Client:   remote.NewClient(transport, e.logger),
				Logger:   e.logger,
				Identity: who,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "cloned %s into %s (%s at %s, %d objects)\n",
				source, absDest, res.Branch, res.Head.Short(), res.Objects)
			return nil
		},
	}
}

// defaultCloneDir derives a directory name from the last path element of
// the URL, dropping a ".git" suffix.
func defaultCloneDir(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse remote URL: %w", err)
	}
	base := path.Base(strings.TrimRight(u.Path, "/"))
	base = strings.TrimSuffix(base, ".git")
	if base == "" || base == "." || base == "/" {
		return "", fmt.Errorf("cannot derive a directory name from %q; pass one explicitly", source)
	}
	return base, nil
}
