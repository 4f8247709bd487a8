package repo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/grit/pkg/object"
)

const zeroHash = object.Hash("0000000000000000000000000000000000000000")

// ReflogEntry is one line of .git/logs/<ref>:
//
//	<old> <new> <name> <<email>> <unix> <tz>\t<message>
type ReflogEntry struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Who     object.Signature
	Message string
}

func (r *Repo) appendReflog(ref string, oldHash, newHash object.Hash, who object.Signature, message string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if err := validateRefName(ref); err != nil {
		return fmt.Errorf("reflog: %w", err)
	}
	if strings.TrimSpace(message) == "" {
		message = "update"
	}

	logPath := filepath.Join(r.GitDir, "logs", filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}

	if oldHash == "" {
		oldHash = zeroHash
	}
	if newHash == "" {
		newHash = zeroHash
	}
	message = strings.ReplaceAll(message, "\n", " ")
	line := fmt.Sprintf("%s %s %s\t%s\n", oldHash, newHash, object.FormatSignature(who), message)

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

// ReadReflog returns the entries logged for ref, newest first. A limit of
// zero or less returns every entry. A ref with no log yields no entries.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	if err := validateRefName(ref); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	logPath := filepath.Join(r.GitDir, "logs", filepath.FromSlash(ref))
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		head, message, _ := strings.Cut(line, "\t")
		parts := strings.SplitN(head, " ", 3)
		if len(parts) < 3 {
			continue
		}
		who, err := object.ParseSignature(parts[2])
		if err != nil {
			continue
		}
		entries = append(entries, ReflogEntry{
			Ref:     ref,
			OldHash: object.Hash(parts[0]),
			NewHash: object.Hash(parts[1]),
			Who:     who,
			Message: message,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	// Return newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
