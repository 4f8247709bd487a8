package object

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// ReachableSet returns every object id reachable from roots by following
// commit, tree and tag references. Unlike a store walk that tolerates gaps,
// any referenced object that is absent is an error, so a nil error means
// the closure of roots is complete on disk.
func (s *Store) ReachableSet(roots []Hash) (map[Hash]struct{}, error) {
	roots = uniqueNormalizedHashes(roots)
	out := make(map[Hash]struct{}, len(roots))

	stack := make([]Hash, 0, len(roots))
	stack = append(stack, roots...)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := out[h]; ok {
			continue
		}

		o, err := s.Read(h)
		if err != nil {
			return nil, fmt.Errorf("reachable set read %s: %w", h, err)
		}
		out[h] = struct{}{}

		refs, err := referencedHashes(o)
		if err != nil {
			return nil, fmt.Errorf("reachable set parse %s (%s): %w", h, o.Type, err)
		}
		stack = append(stack, refs...)
	}

	return out, nil
}

func referencedHashes(o *Object) ([]Hash, error) {
	switch o.Type {
	case TypeBlob:
		return nil, nil
	case TypeTag:
		target, err := tagTarget(o.Data)
		if err != nil {
			return nil, err
		}
		return []Hash{target}, nil
	case TypeCommit:
		commit, err := UnmarshalCommit(o.Data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, 2+len(commit.ExtraParents))
		refs = append(refs, commit.TreeHash)
		if commit.ParentHash != "" {
			refs = append(refs, commit.ParentHash)
		}
		refs = append(refs, commit.ExtraParents...)
		return refs, nil
	case TypeTree:
		tree, err := UnmarshalTree(o.Data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, len(tree.Items))
		for _, item := range tree.Items {
			if item.Mode == TreeModeGitlink {
				continue
			}
			refs = append(refs, item.Hash)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported object type %q", o.Type)
	}
}

// tagTarget reads the "object <id>" header an annotated tag starts with.
func tagTarget(data []byte) (Hash, error) {
	line, _, _ := bytes.Cut(data, []byte{'\n'})
	rest, ok := bytes.CutPrefix(line, []byte("object "))
	if !ok {
		return "", fmt.Errorf("%w: tag has no object header", ErrCorruptObject)
	}
	h, err := ParseHash(string(rest))
	if err != nil {
		return "", fmt.Errorf("%w: tag object: %v", ErrCorruptObject, err)
	}
	return h, nil
}

func uniqueNormalizedHashes(in []Hash) []Hash {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[Hash]struct{}, len(in))
	out := make([]Hash, 0, len(in))
	for _, h := range in {
		h = Hash(strings.ToLower(strings.TrimSpace(string(h))))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
