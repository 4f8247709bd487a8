package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/odvcencio/grit/pkg/object"
	"github.com/odvcencio/grit/pkg/remote"
)

// DefaultRemote is the name a clone gives its source.
const DefaultRemote = "origin"

// CloneOptions configures Clone.
type CloneOptions struct {
	URL    string
	Dest   string
	Client *remote.Client
	Logger *slog.Logger
	// Identity is recorded in the reflog. When is filled in if zero.
	Identity object.Signature
}

// CloneResult describes a finished clone.
type CloneResult struct {
	Repo    *Repo
	Branch  string
	Head    object.Hash
	Objects int
}

// Clone materializes the main branch of the repository at opts.URL into
// opts.Dest: it creates the destination and an empty repository skeleton,
// discovers refs/heads/main (or master), fetches and unpacks its pack,
// stores every object, points HEAD at the branch, and restores the commit's
// tree into the destination.
//
// Nothing is rolled back on failure; a partially populated destination may
// remain.
func Clone(ctx context.Context, opts CloneOptions) (*CloneResult, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("clone: remote URL is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("clone: remote client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	who := opts.Identity
	if who.Name == "" {
		who.Name = "grit"
	}
	if who.Email == "" {
		who.Email = "grit@localhost"
	}
	if who.When.IsZero() {
		who.When = time.Now()
	}

	if err := createCloneDest(opts.Dest); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	r, err := Init(opts.Dest)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	logger.Info("cloning", "url", opts.URL, "dest", opts.Dest)

	head, refName, err := opts.Client.DiscoverMainRef(ctx, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	branch := strings.TrimPrefix(refName, "refs/heads/")

	pack, err := opts.Client.FetchPack(ctx, opts.URL, head)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	stored, err := UnpackPack(r.Store, pack.Entries, pack.Count())
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	logger.Debug("pack stored", "entries", pack.Count(), "objects", stored)

	if _, err := r.Store.ReachableSet([]object.Hash{head}); err != nil {
		return nil, fmt.Errorf("clone: pack is incomplete: %w", err)
	}

	if err := r.recordClonedBranch(opts.URL, branch, head, who); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}

	commit, err := r.Store.ReadCommit(head)
	if err != nil {
		return nil, fmt.Errorf("clone: read head commit: %w", err)
	}
	if err := RestoreTree(r.Store, commit.TreeHash, opts.Dest); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	logger.Info("clone complete", "branch", branch, "head", head.Short(), "objects", stored)

	return &CloneResult{
		Repo:    r,
		Branch:  branch,
		Head:    head,
		Objects: stored,
	}, nil
}

// createCloneDest creates dir, or accepts it if it already exists and is
// an empty directory.
func createCloneDest(dir string) error {
	err := os.Mkdir(dir, 0o755)
	if err == nil || !errors.Is(err, fs.ErrExist) {
		return err
	}
	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("destination %s is not empty: %w", dir, fs.ErrExist)
	}
	return nil
}

// recordClonedBranch writes the branch and remote-tracking refs, points
// HEAD at the branch, and records the remote in .git/config.
func (r *Repo) recordClonedBranch(url, branch string, head object.Hash, who object.Signature) error {
	local := "refs/heads/" + branch
	tracking := "refs/remotes/" + DefaultRemote + "/" + branch
	message := "clone: from " + url

	if err := r.UpdateRefCAS(local, head, ""); err != nil {
		return err
	}
	if err := r.UpdateRef(tracking, head); err != nil {
		return err
	}
	if err := r.WriteSymbolicRef("HEAD", local); err != nil {
		return err
	}
	for _, ref := range []string{local, "HEAD"} {
		if err := r.appendReflog(ref, "", head, who, message); err != nil {
			return err
		}
	}
	if err := r.SetRemote(DefaultRemote, url); err != nil {
		return err
	}
	return r.SetBranchUpstream(branch, DefaultRemote)
}
