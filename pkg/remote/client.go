package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

// Client speaks the smart HTTP upload-pack protocol against one or more
// repository URLs.
type Client struct {
	transport Transport
	logger    *slog.Logger
}

// NewClient creates a protocol client over transport. A nil logger
// discards.
func NewClient(transport Transport, logger *slog.Logger) *Client {
	return &Client{
		transport: transport,
		logger:    loggerOrDiscard(logger),
	}
}

// PackData is a fetched pack with its framing checked: Entries holds the
// entry stream with the 12-byte header and the 20-byte trailer removed.
type PackData struct {
	Header  object.PackHeader
	Entries []byte
}

// Count returns the number of entries announced by the pack header.
func (p *PackData) Count() int {
	return int(p.Header.NumObjects)
}

// DiscoverRefs fetches and decodes the upload-pack ref advertisement of the
// repository at repoURL.
func (c *Client) DiscoverRefs(ctx context.Context, repoURL string) (*Advertisement, error) {
	const op = "discover refs"
	resp, err := c.transport.Do(ctx, &Request{
		Method: http.MethodGet,
		URL:    endpoint(repoURL, "info/refs"),
		Query:  url.Values{"service": {uploadPackService}},
		Header: http.Header{"Accept": {mediaAdvertisement}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := checkResponse(op, resp, mediaAdvertisement); err != nil {
		return nil, err
	}

	adv, err := ParseAdvertisement(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Debug("refs discovered", "url", repoURL, "refs", len(adv.Refs), "capabilities", adv.Capabilities.String())
	return adv, nil
}

// DiscoverMainRef returns the id and full name of refs/heads/main, or of
// refs/heads/master when main is not advertised. It returns ErrNoMainRef
// when neither exists.
func (c *Client) DiscoverMainRef(ctx context.Context, repoURL string) (object.Hash, string, error) {
	adv, err := c.DiscoverRefs(ctx, repoURL)
	if err != nil {
		return "", "", err
	}
	ref, err := adv.MainRef()
	if err != nil {
		return "", "", fmt.Errorf("discover main ref of %s: %w", repoURL, err)
	}
	c.logger.Info("main ref", "name", ref.Name, "id", ref.Hash)
	return ref.Hash, ref.Name, nil
}

// FetchPack asks the server for want and everything it references, and
// returns the pack stream it sends back.
func (c *Client) FetchPack(ctx context.Context, repoURL string, want object.Hash) (*PackData, error) {
	const op = "fetch pack"
	body, err := buildWantRequest(want)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.transport.Do(ctx, &Request{
		Method: http.MethodPost,
		URL:    endpoint(repoURL, uploadPackService),
		Header: http.Header{
			"Accept":       {mediaResult},
			"Content-Type": {mediaRequest},
		},
		Body: body,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := checkResponse(op, resp, mediaResult); err != nil {
		return nil, err
	}

	pack, err := stripAcknowledgement(resp.Body)
	if err != nil {
		return nil, err
	}
	h, entries, err := object.ReadPackFile(pack)
	if err != nil {
		var he *object.PackHeaderError
		if errors.As(err, &he) {
			return nil, &ProtocolError{Op: op, What: "pack " + he.Field, Got: he.Got}
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c.logger.Info("pack received", "objects", h.NumObjects, "bytes", len(pack))
	return &PackData{Header: *h, Entries: entries}, nil
}

// buildWantRequest encodes the upload-pack request: two want lines (the
// first carrying the client capabilities), a flush, and done.
func buildWantRequest(want object.Hash) ([]byte, error) {
	if _, err := object.ParseHash(string(want)); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	pw := NewPacketWriter(&buf)
	lines := []string{
		fmt.Sprintf("want %s %s\n", want, ClientCapabilities),
		fmt.Sprintf("want %s\n", want),
	}
	for _, line := range lines {
		if err := pw.WriteString(line); err != nil {
			return nil, err
		}
	}
	if err := pw.Flush(); err != nil {
		return nil, err
	}
	if err := pw.WriteString("done\n"); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// stripAcknowledgement consumes the leading NAK record of an upload-pack
// result and returns the bytes that follow it.
func stripAcknowledgement(body []byte) ([]byte, error) {
	br := bytes.NewReader(body)
	payload, flush, err := NewPacketReader(br).ReadPacket()
	if err != nil || flush || string(payload) != "NAK\n" {
		return nil, &ProtocolError{Op: "fetch pack", What: "acknowledgement", Got: quotePrefix(body, 8), Want: `"0008NAK\n"`}
	}
	return body[len(body)-br.Len():], nil
}

// checkResponse validates status and media type of a protocol response.
func checkResponse(op string, resp *Response, mediaType string) error {
	if resp.StatusCode != http.StatusOK {
		return &ProtocolError{
			Op:   op,
			What: "status",
			Got:  fmt.Sprintf("%d %s", resp.StatusCode, strings.TrimSpace(string(firstBytes(resp.Body, 256)))),
			Want: "200",
		}
	}
	ct := resp.Header.Get("Content-Type")
	got, _, err := mime.ParseMediaType(ct)
	if err != nil || got != mediaType {
		return &ProtocolError{Op: op, What: "content type", Got: fmt.Sprintf("%q", ct), Want: mediaType}
	}
	return nil
}

func endpoint(repoURL, path string) string {
	return strings.TrimRight(repoURL, "/") + "/" + path
}

func firstBytes(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

func quotePrefix(b []byte, n int) string {
	return fmt.Sprintf("%q", firstBytes(b, n))
}
