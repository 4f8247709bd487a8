package remote

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// acceptEncoding is advertised on every request. The transport decodes
// these itself rather than relying on net/http's implicit gzip handling.
const acceptEncoding = "gzip, zstd"

// decodeContentEncoding undoes the codings listed in a Content-Encoding
// header. Codings are applied in the order listed, so they are removed in
// reverse. limit bounds every decoded stage.
func decodeContentEncoding(contentEncoding string, body []byte, limit int64) ([]byte, error) {
	codings := strings.Split(contentEncoding, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))
		var err error
		switch coding {
		case "", "identity":
			continue
		case "gzip", "x-gzip":
			body, err = decompressGzip(body, limit)
		case "zstd":
			body, err = decompressZstd(body, limit)
		default:
			return nil, fmt.Errorf("unsupported content encoding %q", coding)
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s body: %w", coding, err)
		}
	}
	return body, nil
}

// decompressZstd decompresses zstd-compressed data.
func decompressZstd(data []byte, limit int64) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limit)))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

func decompressGzip(data []byte, limit int64) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return readLimited(zr, limit)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", limit)
	}
	return out, nil
}
