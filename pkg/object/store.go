package object

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
//
// There is no in-memory cache: every Read decompresses from disk.
type Store struct {
	root string
}

// NewStore creates a Store rooted at the given repository metadata
// directory (usually .git). The objects/ subdirectory is created lazily on
// first write.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the directory the store was opened on.
func (s *Store) Root() string {
	return s.root
}

// ObjectPath returns the filesystem path for a given hash.
func (s *Store) ObjectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if len(h) != 2*HashSize {
		return false
	}
	_, err := os.Stat(s.ObjectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. The on-disk format
// is zlib("type len\0content"). Writes are atomic: data is written to a temp
// file and then renamed into place, so a concurrent reader never observes a
// partially written object.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)

	// Fast path: already exists. Content addressing makes the bytes identical.
	if s.Has(h) {
		return h, nil
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(envelopeHeader(objType, data)); err != nil {
		return "", fmt.Errorf("object write compress: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("object write compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("object write compress: %w", err)
	}

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}

	if err := os.Rename(tmpName, s.ObjectPath(h)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	return h, nil
}

// WriteObject stores o and returns its id.
func (s *Store) WriteObject(o *Object) (Hash, error) {
	return s.Write(o.Type, o.Data)
}

// Read retrieves an object by hash. A declared length that disagrees with
// the decompressed payload, or an unknown type tag, is ErrCorruptObject.
func (s *Store) Read(h Hash) (*Object, error) {
	if len(h) != 2*HashSize {
		return nil, fmt.Errorf("object read %q: invalid hash", h)
	}
	compressed, err := os.ReadFile(s.ObjectPath(h))
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w", h, err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w: %v", h, ErrCorruptObject, err)
	}
	raw, err := io.ReadAll(zr)
	zr.Close()
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w: %v", h, ErrCorruptObject, err)
	}

	o, err := parseEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w", h, err)
	}
	return o, nil
}

// parseEnvelope splits "type len\0content" and validates the declared length.
func parseEnvelope(raw []byte) (*Object, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return nil, fmt.Errorf("%w: invalid format (no NUL)", ErrCorruptObject)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	typ, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return nil, fmt.Errorf("%w: invalid header %q", ErrCorruptObject, header)
	}
	objType, err := ParseObjectType(typ)
	if err != nil {
		return nil, err
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid length %q", ErrCorruptObject, lenStr)
	}
	if len(content) != length {
		return nil, fmt.Errorf("%w: length mismatch (header=%d, actual=%d)", ErrCorruptObject, length, len(content))
	}
	return &Object{Type: objType, Data: content}, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

func (s *Store) readTyped(h Hash, want ObjectType) (*Object, error) {
	o, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if o.Type != want {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, o.Type, want)
	}
	return o, nil
}

// ReadBlob reads a blob and returns its content.
func (s *Store) ReadBlob(h Hash) ([]byte, error) {
	o, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return o.Data, nil
}

// WriteTree serializes and stores a Tree. An empty tree has no on-disk
// representation and yields ("", false, nil).
func (s *Store) WriteTree(t *Tree) (Hash, bool, error) {
	if len(t.Items) == 0 {
		return "", false, nil
	}
	h, err := s.Write(TypeTree, MarshalTree(t))
	if err != nil {
		return "", false, err
	}
	return h, true, nil
}

// ReadTree reads and deserializes a Tree.
func (s *Store) ReadTree(h Hash) (*Tree, error) {
	o, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	t, err := UnmarshalTree(o.Data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return t, nil
}

// WriteCommit serializes and stores a Commit.
func (s *Store) WriteCommit(c *Commit) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a Commit.
func (s *Store) ReadCommit(h Hash) (*Commit, error) {
	o, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	c, err := UnmarshalCommit(o.Data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return c, nil
}
