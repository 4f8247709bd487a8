package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/grit/pkg/object"
)

var ErrRefCASMismatch = errors.New("ref compare-and-swap mismatch")

// ErrRefNotFound is returned when a ref, or the ref a symbolic ref points
// at, does not exist.
var ErrRefNotFound = errors.New("ref not found")

const (
	symbolicRefPrefix = "ref: "
	maxSymrefDepth    = 5

	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// Ref is one reference file. Exactly one of Hash and Target is set: Target
// holds the ref path of a symbolic ref.
type Ref struct {
	Name   string
	Hash   object.Hash
	Target string
}

// IsSymbolic reports whether the ref points at another ref.
func (r Ref) IsSymbolic() bool { return r.Target != "" }

// String renders the ref file content.
func (r Ref) String() string {
	if r.IsSymbolic() {
		return symbolicRefPrefix + r.Target + "\n"
	}
	return string(r.Hash) + "\n"
}

// ParseRef decodes ref file content.
func ParseRef(name string, data []byte) (Ref, error) {
	content := strings.TrimSpace(string(data))
	if target, ok := strings.CutPrefix(content, symbolicRefPrefix); ok {
		target = strings.TrimSpace(target)
		if err := validateRefName(target); err != nil {
			return Ref{}, fmt.Errorf("parse ref %q: %w", name, err)
		}
		return Ref{Name: name, Target: target}, nil
	}
	h, err := object.ParseHash(content)
	if err != nil {
		return Ref{}, fmt.Errorf("parse ref %q: %w", name, err)
	}
	return Ref{Name: name, Hash: h}, nil
}

// ReadRef reads the ref file for name without following symbolic refs.
func (r *Repo) ReadRef(name string) (Ref, error) {
	if err := validateRefName(name); err != nil {
		return Ref{}, err
	}
	data, err := os.ReadFile(r.refPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Ref{}, fmt.Errorf("read ref %q: %w", name, ErrRefNotFound)
		}
		return Ref{}, fmt.Errorf("read ref %q: %w", name, err)
	}
	return ParseRef(name, data)
}

// ResolveRef resolves a ref name to an object hash.
//
// Resolution order:
//  1. "HEAD" and names starting with "refs/" are read as given.
//  2. Otherwise, try "refs/heads/<name>", then "refs/tags/<name>".
//
// Symbolic refs are followed up to a fixed depth.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	candidates := []string{name}
	if name != "HEAD" && !strings.HasPrefix(name, "refs/") {
		candidates = []string{"refs/heads/" + name, "refs/tags/" + name}
	}

	var lastErr error
	for _, c := range candidates {
		h, err := r.resolveFrom(c)
		if err == nil {
			return h, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRefNotFound) {
			break
		}
	}
	return "", fmt.Errorf("resolve ref %q: %w", name, lastErr)
}

func (r *Repo) resolveFrom(name string) (object.Hash, error) {
	for depth := 0; depth < maxSymrefDepth; depth++ {
		ref, err := r.ReadRef(name)
		if err != nil {
			return "", err
		}
		if !ref.IsSymbolic() {
			return ref.Hash, nil
		}
		name = ref.Target
	}
	return "", fmt.Errorf("symbolic ref chain from %q deeper than %d", name, maxSymrefDepth)
}

// WriteSymbolicRef points name at the ref target, e.g. HEAD at
// refs/heads/main.
func (r *Repo) WriteSymbolicRef(name, target string) error {
	if err := validateRefName(target); err != nil {
		return fmt.Errorf("write symbolic ref %q: %w", name, err)
	}
	return r.writeRefFile(name, Ref{Name: name, Target: target}, nil)
}

// UpdateRef writes a hash to the named ref file under .git/. Parent
// directories are created as needed.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	return r.UpdateRefCAS(name, h)
}

// UpdateRefCAS writes a hash to the named ref file under .git/ using
// lockfile + rename atomic semantics. If expectedOld is provided, the
// update only succeeds when the current ref hash matches it; an empty
// expectedOld requires that the ref does not exist yet.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	if _, err := object.ParseHash(string(h)); err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	return r.writeRefFile(name, Ref{Name: name, Hash: h}, expectedOld)
}

func (r *Repo) writeRefFile(name string, ref Ref, expectedOld []object.Hash) error {
	if err := validateRefName(name); err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	refPath := r.refPath(name)

	dir := filepath.Dir(refPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	if len(expectedOld) == 1 {
		oldHash, err := readRefHash(refPath)
		if err != nil {
			return fmt.Errorf("update ref %q: read old hash: %w", name, err)
		}
		if oldHash != expectedOld[0] {
			return fmt.Errorf(
				"update ref %q: %w (expected %q, found %q)",
				name,
				ErrRefCASMismatch,
				expectedOld[0],
				oldHash,
			)
		}
	}

	if _, err := lockFile.WriteString(ref.String()); err != nil {
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false
	return nil
}

// ListRefs lists references under .git/refs.
// Names are returned relative to refs root, e.g. "heads/main", "tags/v1".
// Symbolic refs are listed with the hash they resolve to.
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := filepath.Join(r.GitDir, "refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	refs := make(map[string]object.Hash)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		h, err := r.resolveFrom("refs/" + name)
		if err != nil {
			return err
		}
		refs[name] = h
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

func (r *Repo) refPath(name string) string {
	return filepath.Join(r.GitDir, filepath.FromSlash(name))
}

// validateRefName rejects names that would escape .git/ or collide with
// lock files.
func validateRefName(name string) error {
	if name != "HEAD" && !strings.HasPrefix(name, "refs/") {
		return fmt.Errorf("invalid ref name %q: must be HEAD or start with refs/", name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." || strings.HasSuffix(part, ".lock") {
			return fmt.Errorf("invalid ref name %q", name)
		}
	}
	if strings.ContainsAny(name, "\x00\\ \n") {
		return fmt.Errorf("invalid ref name %q", name)
	}
	return nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}
