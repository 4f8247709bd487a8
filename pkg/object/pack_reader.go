package object

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// PackEntry represents one object entry in a pack stream. For ref-deltas
// BaseHash names the base object and Data holds the inflated delta.
type PackEntry struct {
	Type     PackObjectType
	Size     uint64
	Data     []byte
	BaseHash Hash
}

// ReadPackEntries decodes the entry section of a pack stream (header and
// trailer already removed). When count is positive exactly that many entries
// must be present; when it is zero entries are read until data is exhausted.
func ReadPackEntries(data []byte, count int) ([]PackEntry, error) {
	entries := make([]PackEntry, 0, max(count, 0))
	offset := 0
	for i := 0; count <= 0 || i < count; i++ {
		if offset >= len(data) {
			if count <= 0 {
				break
			}
			return nil, fmt.Errorf("entry %d: %w: pack truncated after %d of %d entries", i, ErrCorruptObject, i, count)
		}
		entry, n, err := readPackEntry(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d at offset %d: %w", i, offset, err)
		}
		offset += n
		entries = append(entries, entry)
	}

	if offset != len(data) {
		return nil, fmt.Errorf("%w: pack has trailing undecoded bytes: %d", ErrCorruptObject, len(data)-offset)
	}
	return entries, nil
}

// readPackEntry decodes one entry and returns it with the number of bytes
// it occupied. The compressed payload length is not stored in the pack; it
// is whatever the zlib stream consumes.
func readPackEntry(data []byte) (PackEntry, int, error) {
	objType, size, offset, err := DecodePackEntryHeader(data)
	if err != nil {
		return PackEntry{}, 0, err
	}

	entry := PackEntry{Type: objType, Size: size}
	switch objType {
	case PackCommit, PackTree, PackBlob, PackTag:
	case PackRefDelta:
		if len(data) < offset+HashSize {
			return PackEntry{}, 0, fmt.Errorf("%w: ref-delta base id truncated", ErrCorruptObject)
		}
		entry.BaseHash, _ = HashFromBytes(data[offset : offset+HashSize])
		offset += HashSize
	case PackOfsDelta:
		return PackEntry{}, 0, fmt.Errorf("%w: offset deltas are not supported", ErrUnsupportedPackFeature)
	default:
		return PackEntry{}, 0, fmt.Errorf("%w: unknown pack type code %d", ErrUnsupportedPackFeature, uint8(objType))
	}

	if offset >= len(data) {
		return PackEntry{}, 0, fmt.Errorf("%w: missing compressed payload", ErrCorruptObject)
	}

	// bytes.Reader is an io.ByteReader, so the inflater reads exactly the
	// bytes of this entry's stream and sub.Len() is the unconsumed rest.
	sub := bytes.NewReader(data[offset:])
	zr, err := zlib.NewReader(sub)
	if err != nil {
		return PackEntry{}, 0, fmt.Errorf("%w: zlib reader: %v", ErrCorruptObject, err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return PackEntry{}, 0, fmt.Errorf("%w: decompress: %v", ErrCorruptObject, err)
	}
	if err := zr.Close(); err != nil {
		return PackEntry{}, 0, fmt.Errorf("%w: close zlib stream: %v", ErrCorruptObject, err)
	}
	if uint64(len(raw)) != size {
		return PackEntry{}, 0, fmt.Errorf("%w: size mismatch header=%d decoded=%d", ErrCorruptObject, size, len(raw))
	}
	entry.Data = raw

	consumed := len(data[offset:]) - sub.Len()
	return entry, offset + consumed, nil
}

// UnpackObjects resolves pack entries into objects keyed by id.
//
// Resolution is two-pass: full objects are indexed first, then ref-deltas
// are applied as soon as their base is known, so a delta may precede its
// base in the stream and delta chains of any depth resolve. Deltas whose
// base never appears fail with ErrMissingBase. Since a ref-delta's own id
// is only known once applied, a set of deltas based on each other surfaces
// the same way.
func UnpackObjects(entries []PackEntry) (map[Hash]*Object, error) {
	objects := make(map[Hash]*Object, len(entries))
	waiting := make(map[Hash][]int)
	var ready []Hash

	for i, e := range entries {
		if e.Type == PackRefDelta {
			waiting[e.BaseHash] = append(waiting[e.BaseHash], i)
			continue
		}
		objType, err := e.Type.ObjectType()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		o := &Object{Type: objType, Data: e.Data}
		id := o.ID()
		if _, dup := objects[id]; !dup {
			objects[id] = o
			ready = append(ready, id)
		}
	}

	for len(ready) > 0 {
		base := ready[0]
		ready = ready[1:]
		idxs, ok := waiting[base]
		if !ok {
			continue
		}
		delete(waiting, base)

		baseObj := objects[base]
		for _, i := range idxs {
			data, err := ApplyDelta(baseObj.Data, entries[i].Data)
			if err != nil {
				return nil, fmt.Errorf("entry %d: apply delta on %s: %w", i, base, err)
			}
			o := &Object{Type: baseObj.Type, Data: data}
			id := o.ID()
			if _, dup := objects[id]; !dup {
				objects[id] = o
				ready = append(ready, id)
			}
		}
	}
	if len(waiting) > 0 {
		var missing Hash
		unresolved := 0
		for base, idxs := range waiting {
			if missing == "" || base < missing {
				missing = base
			}
			unresolved += len(idxs)
		}
		return nil, fmt.Errorf("%w: %s (%d unresolved deltas)", ErrMissingBase, missing, unresolved)
	}
	return objects, nil
}
