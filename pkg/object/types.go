package object

import (
	"fmt"
	"time"
)

// Hash is a 40-character lowercase hex-encoded SHA-1 object id.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"
)

// ParseObjectType maps the type tag of an object envelope to an ObjectType.
// Unknown tags are rejected rather than passed through.
func ParseObjectType(s string) (ObjectType, error) {
	switch t := ObjectType(s); t {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown object type %q", ErrCorruptObject, s)
	}
}

// Object is a typed payload. Its id is always derived from Type and Data.
type Object struct {
	Type ObjectType
	Data []byte
}

// ID returns the content address of the object.
func (o *Object) ID() Hash {
	return HashObject(o.Type, o.Data)
}

// TreeMode is the mode string of a tree entry.
type TreeMode string

const (
	TreeModeDir        TreeMode = "40000"
	TreeModeFile       TreeMode = "100644"
	TreeModeExecutable TreeMode = "100755"
	TreeModeSymlink    TreeMode = "120000"
	// TreeModeGitlink entries name a commit in another repository.
	TreeModeGitlink TreeMode = "160000"
)

// IsDir reports whether the entry refers to a subtree.
func (m TreeMode) IsDir() bool {
	return m == TreeModeDir
}

func parseTreeMode(s string) (TreeMode, error) {
	switch m := TreeMode(s); m {
	case TreeModeDir, TreeModeFile, TreeModeExecutable, TreeModeSymlink, TreeModeGitlink:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// TreeItem is one entry in a tree object.
type TreeItem struct {
	Mode TreeMode
	Name string
	Hash Hash
}

// Tree is an ordered directory listing. Items are serialized in slice
// order; callers building trees add them sorted by name.
type Tree struct {
	Items []TreeItem
}

// Signature identifies the author or committer of a commit.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Commit points at a tree with authorship metadata. ParentHash is empty
// only for the first commit of a history.
type Commit struct {
	TreeHash     Hash
	ParentHash   Hash
	ExtraParents []Hash
	Author       Signature
	Committer    Signature
	Message      string
}
