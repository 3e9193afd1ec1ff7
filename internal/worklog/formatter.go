// Package worklog renders activity batches into log text and appends it to
// the local work log.
package worklog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/codetribute/codetribute/internal/models"
)

const (
	// Banner delimits every block in the persisted log.
	Banner = "==============================="
	// TimestampLayout renders the capture time in a locale-style format.
	TimestampLayout = "1/2/2006, 3:04:05 PM"
	// SummaryHeading separates the work-log block from the summary.
	SummaryHeading = "Summary:"
)

// Block is the deduplicated view of a batch. Each list keeps the order in
// which names were first seen.
type Block struct {
	GeneratedAt   time.Time
	ModifiedFiles []string
	CreatedFiles  []string
	DeletedFiles  []string
}

// Build groups the batch by action, collapsing repeated names.
func Build(batch []models.ActivityRecord, at time.Time) Block {
	return Block{
		GeneratedAt:   at,
		ModifiedFiles: uniqueNames(batch, models.ActionModified),
		CreatedFiles:  uniqueNames(batch, models.ActionCreated),
		DeletedFiles:  uniqueNames(batch, models.ActionDeleted),
	}
}

func uniqueNames(batch []models.ActivityRecord, action models.Action) []string {
	names := []string{}
	seen := make(map[string]struct{})
	for _, record := range batch {
		if record.Action != action {
			continue
		}
		if _, ok := seen[record.FileName]; ok {
			continue
		}
		seen[record.FileName] = struct{}{}
		names = append(names, record.FileName)
	}
	return names
}

// Render produces the banner-delimited block text.
func (b Block) Render() string {
	var sb strings.Builder
	sb.WriteString(Banner + "\n")
	fmt.Fprintf(&sb, "Work log generated at %s:\n\n", b.GeneratedAt.Format(TimestampLayout))
	fmt.Fprintf(&sb, "Modified Files: %s\n", jsonList(b.ModifiedFiles))
	fmt.Fprintf(&sb, "Created Files: %s\n", jsonList(b.CreatedFiles))
	fmt.Fprintf(&sb, "Deleted Files: %s\n", jsonList(b.DeletedFiles))
	sb.WriteString(Banner)
	return sb.String()
}

// jsonList renders names as a compact JSON array without HTML escaping.
func jsonList(names []string) string {
	if names == nil {
		names = []string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(names); err != nil {
		// []string always encodes.
		return "[]"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// DetailedLog renders one line per record, duplicates included, for the
// summarizer prompt.
func DetailedLog(batch []models.ActivityRecord) string {
	lines := make([]string, 0, len(batch))
	for _, record := range batch {
		line := fmt.Sprintf("%s %s/%s", strings.ToUpper(string(record.Action)), record.Folder, record.FileName)
		if record.HasContent() {
			line += "\nContent: " + *record.Content
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Combine joins a rendered block and its summary into one log entry.
func Combine(block, summary string) string {
	return block + "\n\n" + SummaryHeading + "\n" + summary
}
