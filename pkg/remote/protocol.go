package remote

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

const (
	uploadPackService = "git-upload-pack"

	mediaAdvertisement = "application/x-git-upload-pack-advertisement"
	mediaRequest       = "application/x-git-upload-pack-request"
	mediaResult        = "application/x-git-upload-pack-result"
)

// ClientCapabilities is sent on the first want line. Offset deltas are not
// requested, so the server answers with full objects and ref-deltas only.
const ClientCapabilities = "command=fetch object-format=sha1 no-progress"

// ErrProtocol is the sentinel matched by every *ProtocolError.
var ErrProtocol = errors.New("protocol error")

// ErrNoMainRef is returned when a remote advertises neither refs/heads/main
// nor refs/heads/master.
var ErrNoMainRef = errors.New("remote has no main or master branch")

// ProtocolError reports an HTTP response or wire record that does not match
// what the smart protocol requires at that point.
type ProtocolError struct {
	Op   string
	What string
	Got  string
	Want string
}

func (e *ProtocolError) Error() string {
	if e.Want != "" {
		return fmt.Sprintf("%s: unexpected %s %s (want %s)", e.Op, e.What, e.Got, e.Want)
	}
	return fmt.Sprintf("%s: unexpected %s %s", e.Op, e.What, e.Got)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// Capabilities represents a set of protocol capabilities. A capability may
// carry a value ("object-format=sha1") or be a bare name ("no-progress").
type Capabilities struct {
	set map[string]string
}

// ParseCapabilities parses a space-separated capability list as found after
// the NUL of the first advertised ref.
func ParseCapabilities(raw string) Capabilities {
	caps := Capabilities{set: make(map[string]string)}
	for _, field := range strings.Fields(raw) {
		name, value, _ := strings.Cut(field, "=")
		caps.set[name] = value
	}
	return caps
}

// Has returns true if the capability is present.
func (c Capabilities) Has(name string) bool {
	_, ok := c.set[name]
	return ok
}

// Value returns the value of a name=value capability.
func (c Capabilities) Value(name string) (string, bool) {
	v, ok := c.set[name]
	return v, ok
}

// String returns the capabilities space-separated, sorted by name.
func (c Capabilities) String() string {
	names := make([]string, 0, len(c.set))
	for k := range c.set {
		names = append(names, k)
	}
	sort.Strings(names)
	for i, name := range names {
		if v := c.set[name]; v != "" {
			names[i] = name + "=" + v
		}
	}
	return strings.Join(names, " ")
}

// Ref is one advertised reference.
type Ref struct {
	Name string
	Hash object.Hash
}

// Advertisement is the decoded body of an info/refs response.
type Advertisement struct {
	Refs         []Ref
	Capabilities Capabilities
}

// Lookup returns the id advertised for name.
func (a *Advertisement) Lookup(name string) (object.Hash, bool) {
	for _, r := range a.Refs {
		if r.Name == name {
			return r.Hash, true
		}
	}
	return "", false
}

// MainRef returns the first of refs/heads/main and refs/heads/master
// present in the advertisement.
func (a *Advertisement) MainRef() (Ref, error) {
	for _, name := range []string{"refs/heads/main", "refs/heads/master"} {
		if h, ok := a.Lookup(name); ok {
			return Ref{Name: name, Hash: h}, nil
		}
	}
	return Ref{}, ErrNoMainRef
}

// ParseAdvertisement decodes a ref advertisement. Records that are not ref
// lines are skipped: the "# service=" banner, a "version N" line, and any
// record whose first field is not an object id. Capabilities are taken from
// the NUL-separated tail of the first record that carries one.
func ParseAdvertisement(body []byte) (*Advertisement, error) {
	adv := &Advertisement{Capabilities: ParseCapabilities("")}
	pr := NewPacketReader(bytes.NewReader(body))
	capsSeen := false
	for {
		payload, flush, err := pr.ReadPacket()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse advertisement: %w", err)
		}
		if flush {
			continue
		}

		line := strings.TrimSuffix(string(payload), "\n")
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "version ") {
			continue
		}
		line, caps, hasCaps := strings.Cut(line, "\x00")
		if hasCaps && !capsSeen {
			adv.Capabilities = ParseCapabilities(caps)
			capsSeen = true
		}

		id, name, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		h, err := object.ParseHash(id)
		if err != nil {
			continue
		}
		name = strings.TrimSpace(name)
		// "capabilities^{}" stands in for refs on an empty repository.
		if name == "" || name == "capabilities^{}" {
			continue
		}
		adv.Refs = append(adv.Refs, Ref{Name: name, Hash: h})
	}
	return adv, nil
}
