package object

import (
	"encoding/binary"
	"fmt"
)

const (
	packHeaderSize       = 12
	supportedPackVersion = 2
)

var packMagic = [4]byte{'P', 'A', 'C', 'K'}

// PackObjectType is the Git pack object type encoding used in object entry
// headers. Values match the canonical Git wire/storage format.
type PackObjectType uint8

const (
	PackCommit   PackObjectType = 1
	PackTree     PackObjectType = 2
	PackBlob     PackObjectType = 3
	PackTag      PackObjectType = 4
	PackOfsDelta PackObjectType = 6
	PackRefDelta PackObjectType = 7
)

func (t PackObjectType) String() string {
	switch t {
	case PackCommit:
		return "commit"
	case PackTree:
		return "tree"
	case PackBlob:
		return "blob"
	case PackTag:
		return "tag"
	case PackOfsDelta:
		return "ofs-delta"
	case PackRefDelta:
		return "ref-delta"
	default:
		return fmt.Sprintf("pack-type(%d)", uint8(t))
	}
}

// ObjectType maps a full-object pack type to its on-disk object type. Delta
// and reserved codes have no object type of their own.
func (t PackObjectType) ObjectType() (ObjectType, error) {
	switch t {
	case PackCommit:
		return TypeCommit, nil
	case PackTree:
		return TypeTree, nil
	case PackBlob:
		return TypeBlob, nil
	case PackTag:
		return TypeTag, nil
	default:
		return "", fmt.Errorf("%w: pack type %s has no object type", ErrUnsupportedPackFeature, t)
	}
}

// PackTypeOf is the inverse of PackObjectType.ObjectType.
func PackTypeOf(t ObjectType) (PackObjectType, error) {
	switch t {
	case TypeCommit:
		return PackCommit, nil
	case TypeTree:
		return PackTree, nil
	case TypeBlob:
		return PackBlob, nil
	case TypeTag:
		return PackTag, nil
	default:
		return 0, fmt.Errorf("no pack type for object type %q", t)
	}
}

// PackHeader is the fixed-size Git pack header.
//
// Bytes:
//   - 0..3:  "PACK"
//   - 4..7:  version (big-endian)
//   - 8..11: number of objects (big-endian)
type PackHeader struct {
	Version    uint32
	NumObjects uint32
}

// Marshal serializes the header to the canonical 12-byte pack header.
func (h PackHeader) Marshal() []byte {
	buf := make([]byte, packHeaderSize)
	copy(buf[:4], packMagic[:])
	binary.BigEndian.PutUint32(buf[4:8], h.Version)
	binary.BigEndian.PutUint32(buf[8:12], h.NumObjects)
	return buf
}

// PackHeaderError reports a pack stream whose framing is not what the
// decoder expects. Field names the token and Got the value found.
type PackHeaderError struct {
	Field string
	Got   string
}

func (e *PackHeaderError) Error() string {
	return fmt.Sprintf("invalid pack %s: %s", e.Field, e.Got)
}

// UnmarshalPackHeader parses a canonical Git pack header.
func UnmarshalPackHeader(data []byte) (*PackHeader, error) {
	if len(data) < packHeaderSize {
		return nil, &PackHeaderError{Field: "header", Got: fmt.Sprintf("%d bytes", len(data))}
	}
	if string(data[:4]) != string(packMagic[:]) {
		return nil, &PackHeaderError{Field: "magic", Got: fmt.Sprintf("%q", data[:4])}
	}

	version := binary.BigEndian.Uint32(data[4:8])
	if version != supportedPackVersion {
		return nil, &PackHeaderError{Field: "version", Got: fmt.Sprint(version)}
	}

	return &PackHeader{
		Version:    version,
		NumObjects: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

// ReadPackFile validates a complete pack stream ("PACK", version 2, count,
// entries, 20-byte trailer) and returns the header and the entry bytes with
// header and trailer removed. The trailer checksum is not verified.
func ReadPackFile(data []byte) (*PackHeader, []byte, error) {
	h, err := UnmarshalPackHeader(data)
	if err != nil {
		return nil, nil, err
	}
	if h.NumObjects == 0 {
		return nil, nil, &PackHeaderError{Field: "object count", Got: "0"}
	}
	if len(data) < packHeaderSize+HashSize {
		return nil, nil, &PackHeaderError{Field: "trailer", Got: fmt.Sprintf("pack of %d bytes", len(data))}
	}
	return h, data[packHeaderSize : len(data)-HashSize], nil
}

// encodePackEntryHeader encodes the variable-length object entry header used in
// Git pack files.
func encodePackEntryHeader(objType PackObjectType, size uint64) []byte {
	b := byte((objType & 0x7) << 4)
	b |= byte(size & 0x0f)
	size >>= 4

	out := make([]byte, 0, 10)
	if size > 0 {
		b |= 0x80
	}
	out = append(out, b)

	for size > 0 {
		next := byte(size & 0x7f)
		size >>= 7
		if size > 0 {
			next |= 0x80
		}
		out = append(out, next)
	}

	return out
}

// DecodePackEntryHeader decodes an object entry header: bit 7 of each byte
// is the continuation flag, bits 4-6 of the first byte are the type, and the
// size is accumulated from the low 4 bits of the first byte followed by 7
// bits per continuation byte. It returns the type, the inflated size and the
// number of bytes consumed.
func DecodePackEntryHeader(data []byte) (PackObjectType, uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, 0, fmt.Errorf("%w: entry header truncated", ErrCorruptObject)
	}

	b := data[0]
	objType := PackObjectType((b >> 4) & 0x7)
	size := uint64(b & 0x0f)
	shift := uint(4)
	consumed := 1

	for b&0x80 != 0 {
		if consumed >= len(data) {
			return 0, 0, 0, fmt.Errorf("%w: entry header truncated", ErrCorruptObject)
		}
		if shift > 57 {
			return 0, 0, 0, fmt.Errorf("%w: entry size overflows", ErrCorruptObject)
		}
		b = data[consumed]
		size |= uint64(b&0x7f) << shift
		shift += 7
		consumed++
	}

	return objType, size, consumed, nil
}
