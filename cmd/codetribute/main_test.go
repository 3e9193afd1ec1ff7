package main

import (
	"testing"
	"time"

	"github.com/codetribute/codetribute/internal/config"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{name: "defaults", args: nil, want: options{command: commandRun}},
		{name: "explicit run", args: []string{"run"}, want: options{command: commandRun}},
		{name: "create repo", args: []string{"create-repo"}, want: options{command: commandCreateRepo}},
		{name: "flags", args: []string{"--root", "/ws", "--interval", "15"}, want: options{command: commandRun, root: "/ws", interval: 15}},
		{name: "flags after command", args: []string{"run", "--root=/ws"}, want: options{command: commandRun, root: "/ws"}},
		{name: "unknown command", args: []string{"deploy"}, wantErr: true},
		{name: "extra argument", args: []string{"run", "now"}, wantErr: true},
		{name: "negative interval", args: []string{"--interval", "-1"}, wantErr: true},
		{name: "unknown flag", args: []string{"--verbose"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("parseArgs() = %+v, expected %+v", got, tt.want)
			}
		})
	}
}

func TestOptionsApply(t *testing.T) {
	cfg := config.Config{}
	cfg.Workspace.Root = "/from-env"
	cfg.Schedule.Interval = time.Hour

	options{}.apply(&cfg)
	if cfg.Workspace.Root != "/from-env" || cfg.Schedule.Interval != time.Hour {
		t.Errorf("empty options changed config: %+v", cfg)
	}

	options{root: "/flag", interval: 5}.apply(&cfg)
	if cfg.Workspace.Root != "/flag" || cfg.Schedule.Interval != 5*time.Minute {
		t.Errorf("flags not applied: %+v", cfg)
	}
}
