package object

import (
	"bytes"
	"fmt"
	"io"
)

// copyZeroSize is the copy length encoded by a size field of zero.
const copyZeroSize = 0x10000

func encodeDeltaVarint(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	out := make([]byte, 0, 10)
	for v > 0 {
		b := byte(v & 0x7f)
		v >>= 7
		if v > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func decodeDeltaVarint(r io.ByteReader) (uint64, error) {
	var (
		value uint64
		shift uint
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("delta varint too large")
		}
	}
}

// BuildInsertOnlyDelta returns a valid Git delta stream by encoding the
// target object as literal insert chunks.
func BuildInsertOnlyDelta(base, target []byte) []byte {
	var out bytes.Buffer
	out.Write(encodeDeltaVarint(uint64(len(base))))
	out.Write(encodeDeltaVarint(uint64(len(target))))

	for pos := 0; pos < len(target); {
		chunk := len(target) - pos
		if chunk > 127 {
			chunk = 127
		}
		out.WriteByte(byte(chunk))
		out.Write(target[pos : pos+chunk])
		pos += chunk
	}
	return out.Bytes()
}

// AppendCopyOp appends a copy instruction for base[offset:offset+size] to a
// delta stream. Zero bytes of offset and size are omitted, and a size of
// 0x10000 is encoded with no size bytes.
func AppendCopyOp(delta []byte, offset, size uint32) []byte {
	if size == copyZeroSize {
		size = 0
	}
	cmd := byte(0x80)
	var args []byte
	for i := 0; i < 4; i++ {
		if b := byte(offset >> (8 * i)); b != 0 {
			cmd |= 1 << i
			args = append(args, b)
		}
	}
	for i := 0; i < 3; i++ {
		if b := byte(size >> (8 * i)); b != 0 {
			cmd |= 1 << (4 + i)
			args = append(args, b)
		}
	}
	delta = append(delta, cmd)
	return append(delta, args...)
}

// ApplyDelta applies Git delta instructions to base and returns the result.
// The delta starts with the base size and the result size as varints; both
// must match or the delta is ErrCorruptObject.
func ApplyDelta(base, delta []byte) ([]byte, error) {
	dr := bytes.NewReader(delta)

	baseSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("%w: read base size: %v", ErrCorruptObject, err)
	}
	if baseSize != uint64(len(base)) {
		return nil, fmt.Errorf("%w: delta base size mismatch: got %d want %d", ErrCorruptObject, baseSize, len(base))
	}
	resultSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("%w: read result size: %v", ErrCorruptObject, err)
	}

	out := make([]byte, 0, resultSize)
	for dr.Len() > 0 {
		cmd, _ := dr.ReadByte()
		if cmd&0x80 != 0 {
			var offset, size uint64
			for i := uint(0); i < 4; i++ {
				if cmd&(1<<i) == 0 {
					continue
				}
				b, err := readDeltaCopyArgByte(dr, "offset", i)
				if err != nil {
					return nil, err
				}
				offset |= uint64(b) << (8 * i)
			}
			for i := uint(0); i < 3; i++ {
				if cmd&(1<<(4+i)) == 0 {
					continue
				}
				b, err := readDeltaCopyArgByte(dr, "size", i)
				if err != nil {
					return nil, err
				}
				size |= uint64(b) << (8 * i)
			}
			if size == 0 {
				size = copyZeroSize
			}
			if offset+size > uint64(len(base)) {
				return nil, fmt.Errorf("%w: delta copy [%d,%d) out of bounds of %d-byte base", ErrCorruptObject, offset, offset+size, len(base))
			}
			out = append(out, base[offset:offset+size]...)
			continue
		}

		if cmd == 0 {
			return nil, fmt.Errorf("%w: invalid delta command 0", ErrCorruptObject)
		}
		if int(cmd) > dr.Len() {
			return nil, fmt.Errorf("%w: delta insert of %d bytes with %d remaining", ErrCorruptObject, cmd, dr.Len())
		}
		insert := make([]byte, int(cmd))
		_, _ = io.ReadFull(dr, insert)
		out = append(out, insert...)
	}

	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("%w: delta result size mismatch: got %d expected %d", ErrCorruptObject, len(out), resultSize)
	}
	return out, nil
}

func readDeltaCopyArgByte(r io.ByteReader, field string, i uint) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%w: delta copy %s byte %d: %v", ErrCorruptObject, field, i, err)
	}
	return b, nil
}
