package models

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Action represents the kind of file-system change that was observed.
type Action string

const (
	ActionCreated  Action = "created"
	ActionModified Action = "modified"
	ActionDeleted  Action = "deleted"
)

// Valid reports whether the action is one of the known kinds.
func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionModified, ActionDeleted:
		return true
	default:
		return false
	}
}

// ActivityRecord is a single observed file event. Records are immutable once
// appended to the buffer.
type ActivityRecord struct {
	ID         string    `json:"id"`
	Action     Action    `json:"action"`
	Folder     string    `json:"folder"`
	FileName   string    `json:"file_name"`
	Content    *string   `json:"content,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// NewActivityRecord builds a record for the given path. Content is dropped for
// deleted records regardless of what the caller passes.
func NewActivityRecord(action Action, path string, content *string) ActivityRecord {
	if action == ActionDeleted {
		content = nil
	}

	return ActivityRecord{
		ID:         uuid.New().String(),
		Action:     action,
		Folder:     filepath.Base(filepath.Dir(path)),
		FileName:   filepath.Base(path),
		Content:    content,
		ObservedAt: time.Now(),
	}
}

// HasContent reports whether a content snapshot was captured.
func (r ActivityRecord) HasContent() bool {
	return r.Content != nil && *r.Content != ""
}
