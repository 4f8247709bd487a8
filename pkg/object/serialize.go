package object

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// MarshalTree serializes a Tree in item order. Each entry is
//
//	<mode> <name>\0<20 raw id bytes>
//
// A tree with no items has no representation and yields nil.
func MarshalTree(t *Tree) []byte {
	if t == nil || len(t.Items) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, item := range t.Items {
		fmt.Fprintf(&buf, "%s %s\x00", item.Mode, item.Name)
		raw, err := item.Hash.Bytes()
		if err != nil {
			// Items are built from ids this package produced; a malformed one
			// is a programming error.
			panic(fmt.Sprintf("marshal tree entry %q: %v", item.Name, err))
		}
		buf.Write(raw)
	}
	return buf.Bytes()
}

// UnmarshalTree parses a Tree from its serialized form, preserving entry
// order.
func UnmarshalTree(data []byte) (*Tree, error) {
	t := &Tree{}
	for len(data) > 0 {
		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return nil, fmt.Errorf("unmarshal tree: %w: entry missing NUL", ErrCorruptObject)
		}
		modeStr, name, ok := strings.Cut(string(data[:nul]), " ")
		if !ok || name == "" {
			return nil, fmt.Errorf("unmarshal tree: %w: malformed entry %q", ErrCorruptObject, data[:nul])
		}
		mode, err := parseTreeMode(modeStr)
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w: %v", ErrCorruptObject, err)
		}
		if len(data) < nul+1+HashSize {
			return nil, fmt.Errorf("unmarshal tree: %w: truncated id for %q", ErrCorruptObject, name)
		}
		h, _ := HashFromBytes(data[nul+1 : nul+1+HashSize])
		t.Items = append(t.Items, TreeItem{Mode: mode, Name: name, Hash: h})
		data = data[nul+1+HashSize:]
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a Commit:
//
//	tree H
//	parent H      (optional)
//	author A <e> T Z
//	committer C <e> T Z
//
//	message
//
// A zero Committer is written as a copy of Author.
func MarshalCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	if c.ParentHash != "" {
		fmt.Fprintf(&buf, "parent %s\n", c.ParentHash)
	}
	for _, p := range c.ExtraParents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	committer := c.Committer
	if committer == (Signature{}) {
		committer = c.Author
	}
	fmt.Fprintf(&buf, "author %s\n", FormatSignature(c.Author))
	fmt.Fprintf(&buf, "committer %s\n", FormatSignature(committer))
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	buf.WriteByte('\n')
	return buf.Bytes()
}

// UnmarshalCommit parses a Commit from its serialized form. Headers this
// package does not model (gpgsig, encoding, mergetag) are skipped along
// with their continuation lines.
func UnmarshalCommit(data []byte) (*Commit, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: %w: missing header/message separator", ErrCorruptObject)
	}
	header := string(data[:idx])
	message := strings.TrimSuffix(string(data[idx+2:]), "\n")

	c := &Commit{Message: message}
	var sawAuthor, sawCommitter bool
	for _, line := range strings.Split(header, "\n") {
		if strings.HasPrefix(line, " ") {
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: %w: malformed header line %q", ErrCorruptObject, line)
		}
		switch key {
		case "tree":
			h, err := ParseHash(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w: tree: %v", ErrCorruptObject, err)
			}
			c.TreeHash = h
		case "parent":
			h, err := ParseHash(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w: parent: %v", ErrCorruptObject, err)
			}
			if c.ParentHash == "" {
				c.ParentHash = h
			} else {
				c.ExtraParents = append(c.ExtraParents, h)
			}
		case "author":
			sig, err := ParseSignature(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: author: %w", err)
			}
			c.Author = sig
			sawAuthor = true
		case "committer":
			sig, err := ParseSignature(val)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: committer: %w", err)
			}
			c.Committer = sig
			sawCommitter = true
		}
	}
	if c.TreeHash == "" {
		return nil, fmt.Errorf("unmarshal commit: %w: missing tree header", ErrCorruptObject)
	}
	if !sawAuthor {
		return nil, fmt.Errorf("unmarshal commit: %w: missing author header", ErrCorruptObject)
	}
	if !sawCommitter {
		c.Committer = c.Author
	}
	return c, nil
}

// FormatSignature renders "Name <email> <unix-seconds> <+hhmm>".
func FormatSignature(s Signature) string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When.Unix(), s.When.Format("-0700"))
}

// ParseSignature parses the value of an author or committer header.
func ParseSignature(s string) (Signature, error) {
	lt := strings.IndexByte(s, '<')
	gt := strings.LastIndexByte(s, '>')
	if lt < 0 || gt < lt {
		return Signature{}, fmt.Errorf("%w: malformed signature %q", ErrCorruptObject, s)
	}
	sig := Signature{
		Name:  strings.TrimSpace(s[:lt]),
		Email: s[lt+1 : gt],
	}

	fields := strings.Fields(s[gt+1:])
	if len(fields) != 2 {
		return Signature{}, fmt.Errorf("%w: malformed signature date %q", ErrCorruptObject, s[gt+1:])
	}
	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: bad timestamp %q", ErrCorruptObject, fields[0])
	}
	loc, err := parseTimezone(fields[1])
	if err != nil {
		return Signature{}, err
	}
	sig.When = time.Unix(secs, 0).In(loc)
	return sig, nil
}

func parseTimezone(tz string) (*time.Location, error) {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return nil, fmt.Errorf("%w: bad timezone %q", ErrCorruptObject, tz)
	}
	hours, err1 := strconv.Atoi(tz[1:3])
	mins, err2 := strconv.Atoi(tz[3:5])
	if err1 != nil || err2 != nil || hours < 0 || mins < 0 || mins > 59 {
		return nil, fmt.Errorf("%w: bad timezone %q", ErrCorruptObject, tz)
	}
	offset := hours*3600 + mins*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(tz, offset), nil
}
