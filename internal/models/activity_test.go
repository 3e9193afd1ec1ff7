package models

import (
	"path/filepath"
	"testing"
)

func TestNewActivityRecordSplitsPath(t *testing.T) {
	content := "hello"
	path := filepath.Join("workspace", "docs", "notes.md")

	record := NewActivityRecord(ActionModified, path, &content)

	if record.Folder != "docs" {
		t.Errorf("expected folder %q, got %q", "docs", record.Folder)
	}
	if record.FileName != "notes.md" {
		t.Errorf("expected file name %q, got %q", "notes.md", record.FileName)
	}
	if !record.HasContent() || *record.Content != content {
		t.Errorf("expected content %q to be kept", content)
	}
	if record.ID == "" {
		t.Error("expected record ID to be set")
	}
	if record.ObservedAt.IsZero() {
		t.Error("expected observation time to be set")
	}
}

func TestNewActivityRecordDropsContentForDeletes(t *testing.T) {
	content := "stale"

	record := NewActivityRecord(ActionDeleted, filepath.Join("src", "main.go"), &content)

	if record.Content != nil {
		t.Fatalf("deleted record must not carry content, got %q", *record.Content)
	}
	if record.HasContent() {
		t.Fatal("HasContent should be false for deleted records")
	}
}

func TestActionValid(t *testing.T) {
	tests := map[Action]bool{
		ActionCreated:  true,
		ActionModified: true,
		ActionDeleted:  true,
		"renamed":      false,
		"":             false,
	}

	for action, expected := range tests {
		if got := action.Valid(); got != expected {
			t.Errorf("Action(%q).Valid() = %v, want %v", action, got, expected)
		}
	}
}
