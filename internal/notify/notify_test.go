package notify

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLogNotifierEchoesToConsole(t *testing.T) {
	var logs, console bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	n := NewLogNotifier(logger, &console)
	n.Info("Logs pushed to GitHub successfully!")
	n.Error("GitHub authentication failed!")

	out := console.String()
	if !strings.Contains(out, "[codetribute] info: Logs pushed to GitHub successfully!") {
		t.Errorf("info notification missing from console: %q", out)
	}
	if !strings.Contains(out, "[codetribute] error: GitHub authentication failed!") {
		t.Errorf("error notification missing from console: %q", out)
	}
	if !strings.Contains(logs.String(), "notification=true") {
		t.Errorf("expected notifications to be tagged in logs: %q", logs.String())
	}
}

func TestLogNotifierWithoutConsole(t *testing.T) {
	var logs bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&logs, nil)), nil)

	n.Info("hello")

	if !strings.Contains(logs.String(), "hello") {
		t.Fatalf("expected message in logs, got %q", logs.String())
	}
}

func TestRecorderSnapshot(t *testing.T) {
	r := &Recorder{}
	r.Info("a")
	r.Error("b")

	infos, errs := r.Snapshot()
	if len(infos) != 1 || infos[0] != "a" {
		t.Errorf("unexpected infos %v", infos)
	}
	if len(errs) != 1 || errs[0] != "b" {
		t.Errorf("unexpected errors %v", errs)
	}
}
