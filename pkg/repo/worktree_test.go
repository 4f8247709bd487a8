package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/odvcencio/grit/pkg/object"
)

func newTestStore(t *testing.T) *object.Store {
	t.Helper()
	return object.NewStore(t.TempDir())
}

func TestBuildTreeFromMapFS(t *testing.T) {
	s := newTestStore(t)
	fsys := fstest.MapFS{
		"hello.txt":           {Data: []byte("hello\n")},
		"run.sh":              {Data: []byte("#!/bin/sh\n"), Mode: 0o755},
		"a/b.txt":             {Data: []byte("b\n")},
		"a.txt":               {Data: []byte("a\n")},
		".git/HEAD":           {Data: []byte("ref: refs/heads/main\n")},
		".idea/workspace.xml": {Data: []byte("<x/>")},
	}

	root, ok, err := BuildTree(s, fsys, ".")
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if !ok {
		t.Fatal("BuildTree reported an empty tree")
	}

	tree, err := s.ReadTree(root)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	wantNames := []string{"a.txt", "a", "hello.txt", "run.sh"}
	if len(tree.Items) != len(wantNames) {
		t.Fatalf("items = %+v, want names %v", tree.Items, wantNames)
	}
	for i, name := range wantNames {
		if tree.Items[i].Name != name {
			t.Fatalf("item %d = %q, want %q (items %+v)", i, tree.Items[i].Name, name, tree.Items)
		}
	}
	if tree.Items[1].Mode != object.TreeModeDir {
		t.Fatalf("a mode = %s, want dir", tree.Items[1].Mode)
	}
	if tree.Items[2].Hash != "ce013625030ba8dba906f756967f9e9ca394464a" {
		t.Fatalf("hello.txt id = %s", tree.Items[2].Hash)
	}
	if tree.Items[3].Mode != object.TreeModeExecutable {
		t.Fatalf("run.sh mode = %s, want executable", tree.Items[3].Mode)
	}
}

func TestBuildTreeOmitsEmptySubtrees(t *testing.T) {
	s := newTestStore(t)
	fsys := fstest.MapFS{
		"keep.txt":        {Data: []byte("keep\n")},
		"empty":           {Mode: os.ModeDir | 0o755},
		"nested/deeper":   {Mode: os.ModeDir | 0o755},
		"nested/.git/x":   {Data: []byte("ignored")},
		"only-idea/.idea": {Mode: os.ModeDir | 0o755},
	}

	root, ok, err := BuildTree(s, fsys, ".")
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if !ok {
		t.Fatal("BuildTree reported an empty tree")
	}
	tree, err := s.ReadTree(root)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(tree.Items) != 1 || tree.Items[0].Name != "keep.txt" {
		t.Fatalf("items = %+v, want only keep.txt", tree.Items)
	}
}

func TestBuildTreeOnlyEmptyDirectories(t *testing.T) {
	dir := t.TempDir()
	s := object.NewStore(filepath.Join(dir, "store"))
	fsys := fstest.MapFS{
		"x/y": {Mode: os.ModeDir | 0o755},
		"z":   {Mode: os.ModeDir | 0o755},
	}

	h, ok, err := BuildTree(s, fsys, ".")
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if ok || h != "" {
		t.Fatalf("BuildTree = (%q, %v), want no tree", h, ok)
	}
	if _, err := os.Stat(filepath.Join(dir, "store", "objects")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("objects dir should not exist, stat err = %v", err)
	}
}

func TestBuildTreeFromDisk(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "f.txt"), []byte("f\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("sub/f.txt", filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	s := newTestStore(t)
	root, ok, err := BuildTree(s, os.DirFS(dir), ".")
	if err != nil || !ok {
		t.Fatalf("BuildTree = (%v, %v)", ok, err)
	}
	files, err := FlattenTree(s, root)
	if err != nil {
		t.Fatalf("FlattenTree: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %+v, want 2", files)
	}
	if files[0].Path != "link" || files[0].Mode != object.TreeModeSymlink {
		t.Fatalf("files[0] = %+v, want symlink", files[0])
	}
	target, err := s.ReadBlob(files[0].Hash)
	if err != nil || string(target) != "sub/f.txt" {
		t.Fatalf("symlink blob = %q, %v", target, err)
	}
	if files[1].Path != "sub/f.txt" {
		t.Fatalf("files[1] = %+v", files[1])
	}
}

func TestRestoreTreeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	fsys := fstest.MapFS{
		"README.md":       {Data: []byte("# demo\n")},
		"bin/tool":        {Data: []byte("#!/bin/sh\necho hi\n"), Mode: 0o755},
		"src/pkg/main.go": {Data: []byte("package main\n")},
	}
	root, _, err := BuildTree(s, fsys, ".")
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	dst := t.TempDir()
	if err := RestoreTree(s, root, dst); err != nil {
		t.Fatalf("RestoreTree: %v", err)
	}
	for name, f := range fsys {
		assertFileContent(t, filepath.Join(dst, filepath.FromSlash(name)), string(f.Data))
	}
	info, err := os.Stat(filepath.Join(dst, "bin", "tool"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("bin/tool mode = %v, want executable", info.Mode())
	}

	again, ok, err := BuildTree(s, os.DirFS(dst), ".")
	if err != nil || !ok {
		t.Fatalf("rebuild = (%v, %v)", ok, err)
	}
	if again != root {
		t.Fatalf("rebuilt tree %s, want %s", again, root)
	}
}

func TestRestoreTreeRejectsUnsafeNames(t *testing.T) {
	s := newTestStore(t)
	blob, err := s.Write(object.TypeBlob, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"..", ".git", ".GIT", "a\\b"} {
		tree, _, err := s.WriteTree(&object.Tree{Items: []object.TreeItem{{Mode: object.TreeModeFile, Name: name, Hash: blob}}})
		if err != nil {
			t.Fatalf("WriteTree(%q): %v", name, err)
		}
		if err := RestoreTree(s, tree, t.TempDir()); !errors.Is(err, object.ErrCorruptObject) {
			t.Fatalf("RestoreTree(%q) error = %v, want ErrCorruptObject", name, err)
		}
	}
}

func TestRestoreTreeRejectsDuplicateNames(t *testing.T) {
	tests := []struct {
		name     string
		linkName string
		fileName string
	}{
		{name: "exact", linkName: "x", fileName: "x"},
		{name: "case folded", linkName: "X", fileName: "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			victim := filepath.Join(t.TempDir(), "victim")
			link, err := s.Write(object.TypeBlob, []byte(victim))
			if err != nil {
				t.Fatal(err)
			}
			payload, err := s.Write(object.TypeBlob, []byte("pwned\n"))
			if err != nil {
				t.Fatal(err)
			}
			tree, _, err := s.WriteTree(&object.Tree{Items: []object.TreeItem{
				{Mode: object.TreeModeSymlink, Name: tt.linkName, Hash: link},
				{Mode: object.TreeModeFile, Name: tt.fileName, Hash: payload},
			}})
			if err != nil {
				t.Fatalf("WriteTree: %v", err)
			}

			dst := t.TempDir()
			if err := RestoreTree(s, tree, dst); !errors.Is(err, object.ErrCorruptObject) {
				t.Fatalf("RestoreTree error = %v, want ErrCorruptObject", err)
			}
			if _, err := os.Lstat(victim); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("victim stat = %v, want not exist", err)
			}
			if _, err := os.Lstat(filepath.Join(dst, tt.linkName)); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("restore wrote %q before rejecting the tree", tt.linkName)
			}
		})
	}
}

func TestRestoreTreeRefusesExistingSymlink(t *testing.T) {
	s := newTestStore(t)
	victim := filepath.Join(t.TempDir(), "victim")
	if err := os.WriteFile(victim, []byte("keep\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := t.TempDir()
	if err := os.Symlink(victim, filepath.Join(dst, "x")); err != nil {
		t.Fatal(err)
	}
	payload, err := s.Write(object.TypeBlob, []byte("pwned\n"))
	if err != nil {
		t.Fatal(err)
	}
	tree, _, err := s.WriteTree(&object.Tree{Items: []object.TreeItem{{Mode: object.TreeModeFile, Name: "x", Hash: payload}}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	if err := RestoreTree(s, tree, dst); err == nil {
		t.Fatal("RestoreTree wrote through an existing symlink")
	}
	assertFileContent(t, victim, "keep\n")
}
