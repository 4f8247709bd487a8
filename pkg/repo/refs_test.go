package repo

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/odvcencio/grit/pkg/object"
)

const (
	hashA = object.Hash("ce013625030ba8dba906f756967f9e9ca394464a")
	hashB = object.Hash("3b18e512dba79e4c8300dd08aeb37f8e728b8dad")
)

func TestResolveRef_FollowsHead(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, err := r.ResolveRef("HEAD"); !errors.Is(err, ErrRefNotFound) {
		t.Fatalf("unborn HEAD error = %v, want ErrRefNotFound", err)
	}

	if err := r.UpdateRef("refs/heads/main", hashA); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	for _, name := range []string{"HEAD", "main", "refs/heads/main"} {
		h, err := r.ResolveRef(name)
		if err != nil {
			t.Fatalf("ResolveRef(%q): %v", name, err)
		}
		if h != hashA {
			t.Fatalf("ResolveRef(%q) = %s, want %s", name, h, hashA)
		}
	}
	assertFileContent(t, filepath.Join(r.GitDir, "refs", "heads", "main"), string(hashA)+"\n")
}

func TestResolveRef_TagFallback(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := r.UpdateRef("refs/tags/v1", hashB); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	h, err := r.ResolveRef("v1")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if h != hashB {
		t.Fatalf("ResolveRef(v1) = %s, want %s", h, hashB)
	}
}

func TestReadRef_SymbolicAndDirect(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	head, err := r.ReadRef("HEAD")
	if err != nil {
		t.Fatalf("ReadRef(HEAD): %v", err)
	}
	if !head.IsSymbolic() || head.Target != "refs/heads/main" {
		t.Fatalf("HEAD = %+v, want symbolic to refs/heads/main", head)
	}

	if err := r.UpdateRef("refs/heads/main", hashA); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	ref, err := r.ReadRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ReadRef: %v", err)
	}
	if ref.IsSymbolic() || ref.Hash != hashA {
		t.Fatalf("ref = %+v, want direct %s", ref, hashA)
	}
}

func TestParseRef_Rejects(t *testing.T) {
	for _, data := range []string{"", "not-a-hash\n", "ref: ../../etc/passwd\n", "ref: \n"} {
		if _, err := ParseRef("HEAD", []byte(data)); err == nil {
			t.Fatalf("ParseRef(%q) should fail", data)
		}
	}
}

func TestSymbolicRefLoop(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := r.WriteSymbolicRef("refs/heads/a", "refs/heads/b"); err != nil {
		t.Fatalf("WriteSymbolicRef: %v", err)
	}
	if err := r.WriteSymbolicRef("refs/heads/b", "refs/heads/a"); err != nil {
		t.Fatalf("WriteSymbolicRef: %v", err)
	}
	if _, err := r.ResolveRef("a"); err == nil {
		t.Fatal("expected error for symbolic ref loop")
	}
}

func TestUpdateRef_RejectsInvalid(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := r.UpdateRef("refs/heads/../../config", hashA); err == nil {
		t.Fatal("expected error for ref name with ..")
	}
	if err := r.UpdateRef("heads/main", hashA); err == nil {
		t.Fatal("expected error for ref name outside refs/")
	}
	if err := r.UpdateRef("refs/heads/main", "abc"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestUpdateRefCAS_CreateOnly(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := r.UpdateRefCAS("refs/heads/main", hashA, ""); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err = r.UpdateRefCAS("refs/heads/main", hashB, "")
	if !errors.Is(err, ErrRefCASMismatch) {
		t.Fatalf("second create error = %v, want ErrRefCASMismatch", err)
	}
	if err := r.UpdateRefCAS("refs/heads/main", hashB, hashA); err != nil {
		t.Fatalf("CAS from A to B: %v", err)
	}
}

func TestUpdateRefCAS_ConcurrentSingleWinner(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := hashA
			if i%2 == 1 {
				h = hashB
			}
			errs <- r.UpdateRefCAS("refs/heads/race", h, "")
		}(i)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrRefCASMismatch):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want 1", wins)
	}
}

func TestListRefs(t *testing.T) {
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := r.UpdateRef("refs/heads/main", hashA); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	if err := r.UpdateRef("refs/tags/v1", hashB); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	refs, err := r.ListRefs("")
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	if len(refs) != 2 || refs["heads/main"] != hashA || refs["tags/v1"] != hashB {
		t.Fatalf("ListRefs = %v", refs)
	}

	heads, err := r.ListRefs("heads")
	if err != nil {
		t.Fatalf("ListRefs(heads): %v", err)
	}
	if len(heads) != 1 {
		t.Fatalf("ListRefs(heads) = %v", heads)
	}

	none, err := r.ListRefs("remotes")
	if err != nil {
		t.Fatalf("ListRefs(remotes): %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("ListRefs(remotes) = %v, want empty", none)
	}
}
