package remote

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// MaxPayloadLen is the largest payload a single pkt-line may carry: the
// 65520-byte line limit minus the 4-byte length prefix.
const MaxPayloadLen = 65516

const pktLenSize = 4

// ErrTooLong is returned by Writer.WritePacket when the payload exceeds
// MaxPayloadLen.
var ErrTooLong = errors.New("pkt-line too long")

// A PacketReader reads pkt-line records from an underlying reader. It reads
// exactly the bytes of each record, so the underlying reader is positioned
// just past the last record returned.
type PacketReader struct {
	r   io.Reader
	hdr [pktLenSize]byte
}

// NewPacketReader creates a new PacketReader from r.
func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{r: r}
}

// ReadPacket returns the payload of the next record. A flush-pkt ("0000")
// is reported as flush=true with a nil payload. io.EOF is returned only when
// the stream ends cleanly between records.
func (r *PacketReader) ReadPacket() (payload []byte, flush bool, err error) {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, false, &ProtocolError{Op: "read pkt-line", What: "length", Got: fmt.Sprintf("%q", r.hdr[:])}
		}
		return nil, false, err
	}
	n, err := strconv.ParseUint(string(r.hdr[:]), 16, 16)
	if err != nil {
		return nil, false, &ProtocolError{Op: "read pkt-line", What: "length", Got: fmt.Sprintf("%q", r.hdr[:])}
	}
	switch {
	case n == 0:
		return nil, true, nil
	case n < pktLenSize:
		return nil, false, &ProtocolError{Op: "read pkt-line", What: "length", Got: string(r.hdr[:]), Want: "0000 or at least 0004"}
	case n-pktLenSize > MaxPayloadLen:
		return nil, false, &ProtocolError{Op: "read pkt-line", What: "length", Got: string(r.hdr[:]), Want: fmt.Sprintf("payload <= %d", MaxPayloadLen)}
	}

	payload = make([]byte, n-pktLenSize)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, false, fmt.Errorf("read pkt-line payload: %w", err)
	}
	return payload, false, nil
}

// A PacketWriter writes pkt-line records to an underlying writer.
type PacketWriter struct {
	w io.Writer
}

// NewPacketWriter creates a new PacketWriter from w.
func NewPacketWriter(w io.Writer) *PacketWriter {
	return &PacketWriter{w: w}
}

// Flush sends a flush-pkt.
func (w *PacketWriter) Flush() error {
	_, err := io.WriteString(w.w, "0000")
	return err
}

// WritePacket writes p as a single pkt-line record.
func (w *PacketWriter) WritePacket(p []byte) error {
	if len(p) > MaxPayloadLen {
		return ErrTooLong
	}
	if _, err := fmt.Fprintf(w.w, "%04x", len(p)+pktLenSize); err != nil {
		return err
	}
	_, err := w.w.Write(p)
	return err
}

// WriteString writes s as a single pkt-line record.
func (w *PacketWriter) WriteString(s string) error {
	return w.WritePacket([]byte(s))
}
