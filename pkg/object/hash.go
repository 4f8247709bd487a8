package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashSize is the length of a raw SHA-1 digest.
const HashSize = sha1.Size

// HashObject computes the SHA-1 of the envelope "type len\0content".
func HashObject(objType ObjectType, data []byte) Hash {
	h := sha1.New()
	h.Write(envelopeHeader(objType, data))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

func envelopeHeader(objType ObjectType, data []byte) []byte {
	return []byte(fmt.Sprintf("%s %d\x00", objType, len(data)))
}

// ParseHash validates s as a 40-character hex object id and returns it in
// lowercase form.
func ParseHash(s string) (Hash, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2*HashSize {
		return "", fmt.Errorf("hash %q: length %d, expected %d", s, len(s), 2*HashSize)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("hash %q: %w", s, err)
	}
	return Hash(s), nil
}

// HashFromBytes converts a raw 20-byte digest to a Hash.
func HashFromBytes(raw []byte) (Hash, error) {
	if len(raw) != HashSize {
		return "", fmt.Errorf("raw hash: got %d bytes, want %d", len(raw), HashSize)
	}
	return Hash(hex.EncodeToString(raw)), nil
}

// Bytes returns the raw 20-byte digest.
func (h Hash) Bytes() ([]byte, error) {
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return nil, fmt.Errorf("hash %q: %w", h, err)
	}
	if len(raw) != HashSize {
		return nil, fmt.Errorf("hash %q: got %d bytes, want %d", h, len(raw), HashSize)
	}
	return raw, nil
}

// Short returns the first 7 characters of the hash.
func (h Hash) Short() string {
	if len(h) > 7 {
		return string(h[:7])
	}
	return string(h)
}
