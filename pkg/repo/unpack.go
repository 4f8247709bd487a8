package repo

import (
	"fmt"
	"sort"

	"github.com/odvcencio/grit/pkg/object"
)

// UnpackPack decodes count entries from a pack entry stream (header and
// trailer already removed), resolves ref-deltas and writes every resulting
// object to s. It returns the number of distinct objects stored. Objects
// are written in id order, so a failure leaves a deterministic prefix.
func UnpackPack(s *object.Store, entries []byte, count int) (int, error) {
	decoded, err := object.ReadPackEntries(entries, count)
	if err != nil {
		return 0, fmt.Errorf("decode pack: %w", err)
	}
	objects, err := object.UnpackObjects(decoded)
	if err != nil {
		return 0, fmt.Errorf("unpack: %w", err)
	}

	ids := make([]object.Hash, 0, len(objects))
	for id := range objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if _, err := s.WriteObject(objects[id]); err != nil {
			return 0, fmt.Errorf("store %s: %w", id, err)
		}
	}
	return len(ids), nil
}
