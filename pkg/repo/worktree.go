package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

// excludedNames are directory entries never recorded in a tree.
var excludedNames = map[string]bool{
	GitDirName: true,
	".idea":    true,
}

// BuildTree records the directory dir of fsys (use "." for the root) as
// tree objects in s. Regular files become blobs, symlinks become blobs of
// their target, subdirectories recurse. A directory with nothing to record
// yields no tree: ok is false and the parent omits it.
//
// Items are ordered the way Git orders them, comparing a subdirectory name
// as if it ended in "/".
func BuildTree(s *object.Store, fsys fs.FS, dir string) (h object.Hash, ok bool, err error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", false, fmt.Errorf("build tree %q: %w", dir, err)
	}

	// Blobs are stored as they are read. Writes are keyed by content, so an
	// aborted walk leaves only unreferenced objects; the tree is written last.
	var items []object.TreeItem
	for _, e := range entries {
		name := e.Name()
		if excludedNames[name] {
			continue
		}
		p := path.Join(dir, name)

		switch {
		case e.IsDir():
			sub, ok, err := BuildTree(s, fsys, p)
			if err != nil {
				return "", false, err
			}
			if !ok {
				continue
			}
			items = append(items, object.TreeItem{Mode: object.TreeModeDir, Name: name, Hash: sub})

		case e.Type()&fs.ModeSymlink != 0:
			target, err := fs.ReadLink(fsys, p)
			if err != nil {
				return "", false, fmt.Errorf("build tree: readlink %q: %w", p, err)
			}
			blob, err := s.Write(object.TypeBlob, []byte(target))
			if err != nil {
				return "", false, fmt.Errorf("build tree: store %q: %w", p, err)
			}
			items = append(items, object.TreeItem{Mode: object.TreeModeSymlink, Name: name, Hash: blob})

		case e.Type().IsRegular():
			info, err := e.Info()
			if err != nil {
				return "", false, fmt.Errorf("build tree: stat %q: %w", p, err)
			}
			data, err := fs.ReadFile(fsys, p)
			if err != nil {
				return "", false, fmt.Errorf("build tree: read %q: %w", p, err)
			}
			blob, err := s.Write(object.TypeBlob, data)
			if err != nil {
				return "", false, fmt.Errorf("build tree: store %q: %w", p, err)
			}
			items = append(items, object.TreeItem{Mode: modeFromFileInfo(info), Name: name, Hash: blob})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return treeSortKey(items[i]) < treeSortKey(items[j])
	})
	h, ok, err = s.WriteTree(&object.Tree{Items: items})
	if err != nil {
		return "", false, fmt.Errorf("build tree %q: %w", dir, err)
	}
	return h, ok, nil
}

func treeSortKey(item object.TreeItem) string {
	if item.Mode.IsDir() {
		return item.Name + "/"
	}
	return item.Name
}

// RestoreTree writes the tree h from s into targetDir, which must exist.
// Items are applied in listing order. Directories that already exist are
// reused; existing files are overwritten.
func RestoreTree(s *object.Store, h object.Hash, targetDir string) error {
	tree, err := s.ReadTree(h)
	if err != nil {
		return fmt.Errorf("restore tree %s: %w", h, err)
	}

	// Names are checked before anything is written. Two items that fold to
	// the same name would let a symlink redirect the later write.
	seen := make(map[string]bool, len(tree.Items))
	for _, item := range tree.Items {
		if err := checkItemName(item.Name); err != nil {
			return fmt.Errorf("restore tree %s: %w", h, err)
		}
		key := strings.ToLower(item.Name)
		if seen[key] {
			return fmt.Errorf("restore tree %s: %w: duplicate entry name %q", h, object.ErrCorruptObject, item.Name)
		}
		seen[key] = true
	}

	for _, item := range tree.Items {
		dst := filepath.Join(targetDir, item.Name)

		switch item.Mode {
		case object.TreeModeDir:
			if err := mkdirExisting(dst); err != nil {
				return fmt.Errorf("restore tree: %w", err)
			}
			if err := RestoreTree(s, item.Hash, dst); err != nil {
				return err
			}
		case object.TreeModeGitlink:
			// Submodule content lives in another repository.
			if err := mkdirExisting(dst); err != nil {
				return fmt.Errorf("restore tree: %w", err)
			}
		case object.TreeModeSymlink:
			target, err := s.ReadBlob(item.Hash)
			if err != nil {
				return fmt.Errorf("restore tree: symlink %q: %w", item.Name, err)
			}
			if err := os.Symlink(string(target), dst); err != nil {
				return fmt.Errorf("restore tree: %w", err)
			}
		default:
			data, err := s.ReadBlob(item.Hash)
			if err != nil {
				return fmt.Errorf("restore tree: file %q: %w", item.Name, err)
			}
			if fi, err := os.Lstat(dst); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
				return fmt.Errorf("restore tree: file %q: refusing to write through symlink", item.Name)
			}
			if err := os.WriteFile(dst, data, filePermFromMode(item.Mode)); err != nil {
				return fmt.Errorf("restore tree: %w", err)
			}
		}
	}
	return nil
}

func mkdirExisting(dir string) error {
	err := os.Mkdir(dir, 0o755)
	if err == nil || !errors.Is(err, fs.ErrExist) {
		return err
	}
	if info, statErr := os.Lstat(dir); statErr == nil && info.IsDir() {
		return nil
	}
	return err
}

// checkItemName rejects tree entry names that would write outside the
// directory being restored or into repository metadata.
func checkItemName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\\\x00") ||
		strings.EqualFold(name, GitDirName) {
		return fmt.Errorf("%w: unsafe tree entry name %q", object.ErrCorruptObject, name)
	}
	return nil
}

// TreeFileEntry represents a single non-directory entry in a flattened
// tree.
type TreeFileEntry struct {
	Path string
	Mode object.TreeMode
	Hash object.Hash
}

// FlattenTree walks a tree object recursively, returning all non-directory
// entries with their full paths (using forward slashes).
func FlattenTree(s *object.Store, h object.Hash) ([]TreeFileEntry, error) {
	return flattenTreeRec(s, h, "")
}

func flattenTreeRec(s *object.Store, h object.Hash, prefix string) ([]TreeFileEntry, error) {
	tree, err := s.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, item := range tree.Items {
		fullPath := item.Name
		if prefix != "" {
			fullPath = path.Join(prefix, item.Name)
		}

		if item.Mode.IsDir() {
			sub, err := flattenTreeRec(s, item.Hash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
		} else {
			result = append(result, TreeFileEntry{
				Path: fullPath,
				Mode: item.Mode,
				Hash: item.Hash,
			})
		}
	}
	return result, nil
}
