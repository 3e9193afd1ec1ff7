package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codetribute/codetribute/internal/config"
	"github.com/codetribute/codetribute/internal/github"
	"github.com/codetribute/codetribute/internal/notify"
	"github.com/codetribute/codetribute/internal/publish"
	"github.com/codetribute/codetribute/internal/secrets"
)

func newTestApp(t *testing.T, handler http.Handler) (*app, *notify.Recorder) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		GitHub: config.GitHubConfig{
			APIURL:     srv.URL,
			Repository: "codetribute-repo",
			Token:      "tok",
			Timeout:    5 * time.Second,
		},
	}

	client, err := github.NewClient(cfg.GitHub.APIURL, cfg.GitHub.Timeout, logger)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	recorder := &notify.Recorder{}
	return &app{
		cfg:      cfg,
		logger:   logger,
		notifier: recorder,
		resolver: secrets.NewResolver(nil, nil, recorder, logger),
		github:   client,
	}, recorder
}

func TestCreateRepo(t *testing.T) {
	tests := []struct {
		name        string
		userStatus  int
		repoStatus  int
		repoBody    string
		wantInfos   []string
		wantErrors  []string
		wantCreates int32
	}{
		{
			name:        "created",
			userStatus:  http.StatusOK,
			repoStatus:  http.StatusCreated,
			repoBody:    `{"id":1,"name":"codetribute-repo","full_name":"octo/codetribute-repo","private":true}`,
			wantInfos:   []string{messageRepoCreated},
			wantCreates: 1,
		},
		{
			name:        "rejected",
			userStatus:  http.StatusOK,
			repoStatus:  http.StatusForbidden,
			repoBody:    `{"message":"Resource not accessible by integration"}`,
			wantErrors:  []string{messageRepoFailed},
			wantCreates: 1,
		},
		{
			name:        "already exists",
			userStatus:  http.StatusOK,
			repoStatus:  http.StatusUnprocessableEntity,
			repoBody:    `{"message":"Repository creation failed.","errors":[{"resource":"Repository","code":"custom","field":"name","message":"name already exists on this account"}]}`,
			wantErrors:  []string{messageRepoExists},
			wantCreates: 1,
		},
		{
			name:       "bad credentials",
			userStatus: http.StatusUnauthorized,
			wantErrors: []string{publish.MessageAuthFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var creates atomic.Int32
			mux := http.NewServeMux()
			mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
				if tt.userStatus != http.StatusOK {
					w.WriteHeader(tt.userStatus)
					_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
					return
				}
				w.Header().Set("X-OAuth-Scopes", "repo")
				_, _ = w.Write([]byte(`{"login":"octo","id":7}`))
			})
			mux.HandleFunc("POST /user/repos", func(w http.ResponseWriter, r *http.Request) {
				creates.Add(1)
				var body map[string]any
				_ = json.NewDecoder(r.Body).Decode(&body)
				if body["name"] != "codetribute-repo" || body["private"] != true {
					t.Errorf("unexpected create body %v", body)
				}
				w.WriteHeader(tt.repoStatus)
				_, _ = w.Write([]byte(tt.repoBody))
			})

			a, recorder := newTestApp(t, mux)
			err := a.createRepo(context.Background())
			if (err == nil) != (len(tt.wantErrors) == 0) {
				t.Fatalf("createRepo error = %v, want failure %v", err, len(tt.wantErrors) > 0)
			}

			infos, errs := recorder.Snapshot()
			if !slices.Equal(infos, tt.wantInfos) {
				t.Errorf("info notifications = %v, want %v", infos, tt.wantInfos)
			}
			if !slices.Equal(errs, tt.wantErrors) {
				t.Errorf("error notifications = %v, want %v", errs, tt.wantErrors)
			}
			if got := creates.Load(); got != tt.wantCreates {
				t.Errorf("expected %d create calls, got %d", tt.wantCreates, got)
			}
		})
	}
}
