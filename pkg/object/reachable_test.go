package object

import (
	"errors"
	"io/fs"
	"testing"
	"time"
)

func TestReachableSetWalksCommitGraph(t *testing.T) {
	s := tempStore(t)

	blob, err := s.Write(TypeBlob, []byte("hello\n"))
	if err != nil {
		t.Fatalf("Write blob: %v", err)
	}
	sub, _, err := s.WriteTree(&Tree{Items: []TreeItem{{Mode: TreeModeFile, Name: "a.txt", Hash: blob}}})
	if err != nil {
		t.Fatalf("WriteTree sub: %v", err)
	}
	root, _, err := s.WriteTree(&Tree{Items: []TreeItem{
		{Mode: TreeModeDir, Name: "dir", Hash: sub},
		{Mode: TreeModeFile, Name: "hello.txt", Hash: blob},
	}})
	if err != nil {
		t.Fatalf("WriteTree root: %v", err)
	}
	sig := Signature{Name: "A", Email: "a@example.com", When: time.Unix(1700000000, 0).UTC()}
	parent, err := s.WriteCommit(&Commit{TreeHash: sub, Author: sig, Message: "first"})
	if err != nil {
		t.Fatalf("WriteCommit parent: %v", err)
	}
	head, err := s.WriteCommit(&Commit{TreeHash: root, ParentHash: parent, Author: sig, Message: "second"})
	if err != nil {
		t.Fatalf("WriteCommit head: %v", err)
	}

	set, err := s.ReachableSet([]Hash{head, " " + head + " "})
	if err != nil {
		t.Fatalf("ReachableSet: %v", err)
	}
	for _, h := range []Hash{head, parent, root, sub, blob} {
		if _, ok := set[h]; !ok {
			t.Fatalf("ReachableSet missing %s", h)
		}
	}
	if len(set) != 5 {
		t.Fatalf("len(set) = %d, want 5", len(set))
	}
}

func TestReachableSetReportsMissingObject(t *testing.T) {
	s := tempStore(t)
	absent := HashObject(TypeBlob, []byte("absent"))
	tree, _, err := s.WriteTree(&Tree{Items: []TreeItem{{Mode: TreeModeFile, Name: "gone", Hash: absent}}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	_, err = s.ReachableSet([]Hash{tree})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("error = %v, want fs.ErrNotExist", err)
	}
}
