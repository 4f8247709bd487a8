package object

import (
	"errors"
	"testing"
)

func TestPackHeaderRoundTrip(t *testing.T) {
	h := PackHeader{
		Version:    supportedPackVersion,
		NumObjects: 42,
	}

	data := h.Marshal()
	if len(data) != packHeaderSize {
		t.Fatalf("header len = %d, want %d", len(data), packHeaderSize)
	}

	got, err := UnmarshalPackHeader(data)
	if err != nil {
		t.Fatalf("UnmarshalPackHeader: %v", err)
	}
	if got.Version != h.Version || got.NumObjects != h.NumObjects {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, h)
	}
}

func TestPackHeaderRejects(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		wantField string
	}{
		{name: "magic", data: []byte("JUNK\x00\x00\x00\x02\x00\x00\x00\x01"), wantField: "magic"},
		{name: "version 3", data: PackHeader{Version: 3, NumObjects: 1}.Marshal(), wantField: "version"},
		{name: "short", data: []byte("PACK"), wantField: "header"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalPackHeader(tt.data)
			var he *PackHeaderError
			if !errors.As(err, &he) {
				t.Fatalf("error = %v, want *PackHeaderError", err)
			}
			if he.Field != tt.wantField {
				t.Fatalf("Field = %q, want %q", he.Field, tt.wantField)
			}
		})
	}
}

func TestReadPackFileStripsHeaderAndTrailer(t *testing.T) {
	body := []byte("entries")
	trailer := make([]byte, HashSize)
	data := append(PackHeader{Version: 2, NumObjects: 1}.Marshal(), body...)
	data = append(data, trailer...)

	h, entries, err := ReadPackFile(data)
	if err != nil {
		t.Fatalf("ReadPackFile: %v", err)
	}
	if h.NumObjects != 1 {
		t.Fatalf("NumObjects = %d", h.NumObjects)
	}
	if string(entries) != "entries" {
		t.Fatalf("entries = %q", entries)
	}
}

func TestReadPackFileRejectsEmptyPack(t *testing.T) {
	data := append(PackHeader{Version: 2, NumObjects: 0}.Marshal(), make([]byte, HashSize)...)
	if _, _, err := ReadPackFile(data); err == nil {
		t.Fatal("expected error for zero-object pack")
	}
}

func TestDecodePackEntryHeaderSingleByte(t *testing.T) {
	// 0x32 = 0 011 0010: no continuation, type 3 (blob), size 2.
	typ, size, n, err := DecodePackEntryHeader([]byte{0x32, 0xff})
	if err != nil {
		t.Fatalf("DecodePackEntryHeader: %v", err)
	}
	if typ != PackBlob || size != 2 || n != 1 {
		t.Fatalf("decode = (%s, %d, %d), want (blob, 2, 1)", typ, size, n)
	}
}

func TestDecodePackEntryHeaderContinuation(t *testing.T) {
	// 0x95 = 1 001 0101: commit, low size bits 5; 0x0a contributes 10<<4.
	typ, size, n, err := DecodePackEntryHeader([]byte{0x95, 0x0a})
	if err != nil {
		t.Fatalf("DecodePackEntryHeader: %v", err)
	}
	if typ != PackCommit || size != 5+10<<4 || n != 2 {
		t.Fatalf("decode = (%s, %d, %d), want (commit, %d, 2)", typ, size, n, 5+10<<4)
	}
}

func TestDecodePackEntryHeaderTruncated(t *testing.T) {
	for _, data := range [][]byte{nil, {0x95}, {0x95, 0x80}} {
		if _, _, _, err := DecodePackEntryHeader(data); !errors.Is(err, ErrCorruptObject) {
			t.Fatalf("DecodePackEntryHeader(%x) error = %v, want ErrCorruptObject", data, err)
		}
	}
}

func TestPackEntryTypeEncodingRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		objType PackObjectType
		size    uint64
	}{
		{name: "blob-zero", objType: PackBlob, size: 0},
		{name: "commit-small", objType: PackCommit, size: 127},
		{name: "tree-mid", objType: PackTree, size: 256},
		{name: "blob-large", objType: PackBlob, size: 1 << 20},
		{name: "ref-delta", objType: PackRefDelta, size: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodePackEntryHeader(tt.objType, tt.size)
			gotType, gotSize, consumed, err := DecodePackEntryHeader(data)
			if err != nil {
				t.Fatalf("DecodePackEntryHeader: %v", err)
			}
			if gotType != tt.objType || gotSize != tt.size {
				t.Fatalf("decode = (%d,%d), want (%d,%d)", gotType, gotSize, tt.objType, tt.size)
			}
			if consumed != len(data) {
				t.Fatalf("consumed = %d, want %d", consumed, len(data))
			}
		})
	}
}

func TestPackObjectTypeMapping(t *testing.T) {
	want := map[PackObjectType]ObjectType{
		PackCommit: TypeCommit,
		PackTree:   TypeTree,
		PackBlob:   TypeBlob,
		PackTag:    TypeTag,
	}
	for pt, ot := range want {
		got, err := pt.ObjectType()
		if err != nil || got != ot {
			t.Fatalf("%s.ObjectType() = (%q, %v), want %q", pt, got, err, ot)
		}
		back, err := PackTypeOf(ot)
		if err != nil || back != pt {
			t.Fatalf("PackTypeOf(%q) = (%s, %v), want %s", ot, back, err, pt)
		}
	}
	for _, pt := range []PackObjectType{0, 5, PackOfsDelta, PackRefDelta} {
		if _, err := pt.ObjectType(); !errors.Is(err, ErrUnsupportedPackFeature) {
			t.Fatalf("%s.ObjectType() error = %v, want ErrUnsupportedPackFeature", pt, err)
		}
	}
}
