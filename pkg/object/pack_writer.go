package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/klauspost/compress/zlib"
)

func compressPackPayload(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PackWriter writes version 2 pack streams with zlib-compressed entries and
// a SHA-1 trailer over all preceding bytes.
type PackWriter struct {
	out      io.Writer
	hasher   hash.Hash
	hashedW  io.Writer
	expected uint32
	written  uint32
	finished bool
}

// NewPackWriter initializes a new writer and writes the fixed pack header.
func NewPackWriter(out io.Writer, numObjects uint32) (*PackWriter, error) {
	hasher := sha1.New()
	pw := &PackWriter{
		out:      out,
		hasher:   hasher,
		hashedW:  io.MultiWriter(out, hasher),
		expected: numObjects,
	}

	header := PackHeader{
		Version:    supportedPackVersion,
		NumObjects: numObjects,
	}
	if _, err := pw.hashedW.Write(header.Marshal()); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

func (p *PackWriter) checkWritable() error {
	if p.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}
	return nil
}

// WriteObject appends a full (non-delta) entry for o.
func (p *PackWriter) WriteObject(o *Object) error {
	packType, err := PackTypeOf(o.Type)
	if err != nil {
		return err
	}
	return p.writeEntry(packType, nil, o.Data)
}

// WriteRefDelta appends a REF_DELTA entry whose base is identified by id.
// delta must be a complete delta stream (see ApplyDelta).
func (p *PackWriter) WriteRefDelta(base Hash, delta []byte) error {
	raw, err := base.Bytes()
	if err != nil {
		return fmt.Errorf("write ref-delta: %w", err)
	}
	return p.writeEntry(PackRefDelta, raw, delta)
}

func (p *PackWriter) writeEntry(objType PackObjectType, prefix, data []byte) error {
	if err := p.checkWritable(); err != nil {
		return err
	}

	compressed, err := compressPackPayload(data)
	if err != nil {
		return fmt.Errorf("compress pack entry: %w", err)
	}

	header := encodePackEntryHeader(objType, uint64(len(data)))
	if _, err := p.hashedW.Write(header); err != nil {
		return fmt.Errorf("write pack entry header: %w", err)
	}
	if len(prefix) > 0 {
		if _, err := p.hashedW.Write(prefix); err != nil {
			return fmt.Errorf("write %s base: %w", objType, err)
		}
	}
	if _, err := p.hashedW.Write(compressed); err != nil {
		return fmt.Errorf("write compressed pack entry: %w", err)
	}

	p.written++
	return nil
}

// Finish validates object count, writes the trailing pack checksum, and returns
// that checksum as a hex digest.
func (p *PackWriter) Finish() (Hash, error) {
	if p.finished {
		return "", fmt.Errorf("pack writer already finished")
	}
	if p.written != p.expected {
		return "", fmt.Errorf("pack object count mismatch: wrote %d, expected %d", p.written, p.expected)
	}

	sum := p.hasher.Sum(nil)
	if _, err := p.out.Write(sum); err != nil {
		return "", fmt.Errorf("write pack trailer checksum: %w", err)
	}

	p.finished = true
	return Hash(hex.EncodeToString(sum)), nil
}
