package object

import (
	"bytes"
	"crypto/sha1"
	"testing"
)

func TestPackWriterSingleBlob(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 1)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}

	if err := pw.WriteObject(&Object{Type: TypeBlob, Data: []byte("hello world")}); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}

	checksum, err := pw.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	data := buf.Bytes()
	if len(data) <= packHeaderSize+HashSize {
		t.Fatalf("pack output too short: %d", len(data))
	}
	sum := sha1.Sum(data[:len(data)-HashSize])
	if !bytes.Equal(sum[:], data[len(data)-HashSize:]) {
		t.Fatal("trailer is not the SHA-1 of the preceding bytes")
	}
	want, _ := HashFromBytes(sum[:])
	if checksum != want {
		t.Fatalf("Finish checksum = %s, want %s", checksum, want)
	}

	header, err := UnmarshalPackHeader(data[:packHeaderSize])
	if err != nil {
		t.Fatalf("UnmarshalPackHeader: %v", err)
	}
	if header.NumObjects != 1 {
		t.Fatalf("NumObjects = %d, want 1", header.NumObjects)
	}
}

func TestPackWriterCountMismatch(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 2)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	if err := pw.WriteObject(&Object{Type: TypeBlob, Data: []byte("one")}); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}

	if _, err := pw.Finish(); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestPackWriterRejectsWriteAfterFinish(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 1)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	if err := pw.WriteObject(&Object{Type: TypeBlob, Data: []byte("one")}); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	if _, err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if err := pw.WriteObject(&Object{Type: TypeBlob, Data: []byte("two")}); err == nil {
		t.Fatal("expected write-after-finish error")
	}
}

func TestPackWriterRejectsMalformedBase(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 1)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	if err := pw.WriteRefDelta("not-a-hash", []byte{0, 0}); err == nil {
		t.Fatal("expected error for malformed base id")
	}
}
