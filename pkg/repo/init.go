package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

// ErrNotRepository is returned by Open when no .git directory is found.
var ErrNotRepository = errors.New("not a git repository")

// Init creates a new repository at path with HEAD on DefaultBranch.
func Init(path string) (*Repo, error) {
	return InitBranch(path, DefaultBranch)
}

// InitBranch creates a new repository at path. It creates the .git/
// skeleton: objects/, refs/heads/, refs/tags/, a symbolic HEAD naming
// refs/heads/<branch>, and a config file. Returns an error if a .git/
// directory already exists.
func InitBranch(path, branch string) (*Repo, error) {
	gitDir := filepath.Join(path, GitDirName)

	// Fail if .git/ already exists.
	if _, err := os.Stat(gitDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s: %w", gitDir, fs.ErrExist)
	}
	head := "refs/heads/" + branch
	if err := validateRefName(head); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	// Create directory structure.
	dirs := []string{
		filepath.Join(gitDir, "objects"),
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "tags"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	r := &Repo{
		RootDir: path,
		GitDir:  gitDir,
		Store:   object.NewStore(gitDir),
	}
	if err := r.WriteSymbolicRef("HEAD", head); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := r.writeDefaultConfig(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return r, nil
}

// Open searches upward from path for a .git/ directory and opens the
// repository.
func Open(path string) (*Repo, error) {
	// Resolve to absolute path for consistent traversal.
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		gitDir := filepath.Join(cur, GitDirName)
		info, err := os.Stat(gitDir)
		if err == nil && info.IsDir() {
			return &Repo{
				RootDir: cur,
				GitDir:  gitDir,
				Store:   object.NewStore(gitDir),
			}, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open %s: %w (or any parent up to /)", abs, ErrNotRepository)
		}
		cur = parent
	}
}

// Head reads .git/HEAD. If the content starts with "ref: ", it returns the
// ref path (e.g., "refs/heads/main"). Otherwise it returns the raw content
// as a detached hash string.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.GitDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")

	if target, ok := strings.CutPrefix(content, symbolicRefPrefix); ok {
		return target, nil
	}
	return content, nil
}
