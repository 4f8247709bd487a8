package main

import (
	"fmt"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/repo"
)

func openRepo() (*repo.Repo, error) {
	return repo.Open(".")
}

// resolveRevision accepts a full object id or a ref name such as HEAD,
// main or refs/tags/v1.
func resolveRevision(r *repo.Repo, rev string) (object.Hash, error) {
	if h, err := object.ParseHash(rev); err == nil {
		return h, nil
	}
	h, err := r.ResolveRef(rev)
	if err != nil {
		return "", fmt.Errorf("unknown revision %q: %w", rev, err)
	}
	return h, nil
}

// resolveTreeish resolves rev and peels a commit to its tree.
func resolveTreeish(r *repo.Repo, rev string) (object.Hash, error) {
	h, err := resolveRevision(r, rev)
	if err != nil {
		return "", err
	}
	obj, err := r.Store.Read(h)
	if err != nil {
		return "", err
	}
	switch obj.Type {
	case object.TypeTree:
		return h, nil
	case object.TypeCommit:
		c, err := object.UnmarshalCommit(obj.Data)
		if err != nil {
			return "", fmt.Errorf("read commit %s: %w", h, err)
		}
		return c.TreeHash, nil
	default:
		return "", fmt.Errorf("%s is a %s, not a tree", h.Short(), obj.Type)
	}
}

// itemType names the object kind a tree entry points at.
func itemType(mode object.TreeMode) object.ObjectType {
	switch mode {
	case object.TreeModeDir:
		return object.TypeTree
	case object.TreeModeGitlink:
		return object.TypeCommit
	default:
		return object.TypeBlob
	}
}

// formatTreeLine renders an entry the way git ls-tree does, with the mode
// padded to six digits.
func formatTreeLine(mode object.TreeMode, id object.Hash, name string) string {
	m := string(mode)
	if len(m) < 6 {
		m = strings.Repeat("0", 6-len(m)) + m
	}
	return fmt.Sprintf("%s %s %s\t%s", m, itemType(mode), id, name)
}
