package ingest

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

const (
	// MaxContentRunes caps the snapshot stored with created/modified records.
	MaxContentRunes = 500
	// TruncationMarker is appended when a snapshot was cut short.
	TruncationMarker = "..."
)

// Sample returns up to MaxContentRunes characters of the file at path,
// followed by TruncationMarker when the file holds more. The second return is
// false when the path is missing, unreadable or not a regular file. Sample
// never fails loudly.
func Sample(path string) (string, bool) {
	// Opening a FIFO or device can block, so check the type first.
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}

	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	// One rune beyond the cap is enough to know whether truncation applies.
	limit := int64((MaxContentRunes + 1) * utf8.UTFMax)
	raw, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return "", false
	}

	text := strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	if utf8.RuneCountInString(text) <= MaxContentRunes {
		return text, true
	}

	return truncateRunes(text, MaxContentRunes) + TruncationMarker, true
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
