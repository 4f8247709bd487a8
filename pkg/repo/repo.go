package repo

import (
	"github.com/odvcencio/grit/pkg/object"
)

const (
	// GitDirName is the metadata directory inside a working tree.
	GitDirName = ".git"

	// DefaultBranch is the branch HEAD points at in a fresh repository.
	DefaultBranch = "main"
)

// Repo represents an opened repository.
type Repo struct {
	RootDir string        // working directory root
	GitDir  string        // .git/ directory
	Store   *object.Store // content-addressed object store
}
