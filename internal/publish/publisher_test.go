package publish

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codetribute/codetribute/internal/auth"
	"github.com/codetribute/codetribute/internal/github"
	"github.com/codetribute/codetribute/internal/models"
	"github.com/codetribute/codetribute/internal/notify"
	"github.com/codetribute/codetribute/internal/retry"
)

// fastRetry keeps transient-failure tests quick.
var fastRetry = retry.Policy{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Second, BackoffFactor: 1}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticSessions struct {
	session     *auth.Session
	err         error
	invalidated int
}

func (s *staticSessions) Session(context.Context, []string) (*auth.Session, error) {
	return s.session, s.err
}

func (s *staticSessions) Invalidate() {
	s.invalidated++
}

// fakeRepo serves the contents endpoint for octo/codetribute-repo/log.txt.
type fakeRepo struct {
	mu        sync.Mutex
	sha       string
	content   []byte
	gets      int
	puts      int
	putSHAs   []string
	getStatus int
	getFails  []int
	putFails  []int
}

func (f *fakeRepo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path != "/repos/octo/codetribute-repo/contents/log.txt" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		f.gets++
		if len(f.getFails) > 0 {
			status := f.getFails[0]
			f.getFails = f.getFails[1:]
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"try later"}`))
			return
		}
		if f.getStatus != 0 {
			w.WriteHeader(f.getStatus)
			_, _ = w.Write([]byte(`{"message":"boom"}`))
			return
		}
		if f.sha == "" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sha": f.sha, "path": "log.txt"})
	case http.MethodPut:
		f.puts++
		var req struct {
			Content string `json:"content"`
			SHA     string `json:"sha"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.putSHAs = append(f.putSHAs, req.SHA)

		if len(f.putFails) > 0 {
			status := f.putFails[0]
			f.putFails = f.putFails[1:]
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"rejected"}`))
			return
		}

		created := f.sha == ""
		f.content, _ = base64.StdEncoding.DecodeString(req.Content)
		f.sha = strings.Repeat("a", f.puts)
		if created {
			w.WriteHeader(http.StatusCreated)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]any{"sha": f.sha},
			"commit":  map[string]any{"sha": "commit-" + f.sha},
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newPublisher(t *testing.T, repo *fakeRepo, sessions auth.Provider) (*Publisher, *notify.Recorder, string) {
	t.Helper()

	srv := httptest.NewServer(repo)
	t.Cleanup(srv.Close)

	localPath := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(localPath, []byte("entry one\n\n"), 0o644); err != nil {
		t.Fatalf("write local log: %v", err)
	}

	recorder := &notify.Recorder{}
	client, err := github.NewClient(srv.URL, 5*time.Second, discardLogger())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	publisher := New(client, sessions, Options{
		LocalPath:     localPath,
		Repository:    "codetribute-repo",
		RemotePath:    "log.txt",
		CommitMessage: "Update log.txt",
		Retry:         fastRetry,
	}, recorder, nil, discardLogger())
	return publisher, recorder, localPath
}

func octoSession() *staticSessions {
	return &staticSessions{session: &auth.Session{AccessToken: "tok", AccountLabel: "octo"}}
}

func TestPublishCreatesMissingFile(t *testing.T) {
	repo := &fakeRepo{}
	publisher, recorder, _ := newPublisher(t, repo, octoSession())

	result, err := publisher.Publish(context.Background())
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if result.Status != models.PublishStatusCreated {
		t.Errorf("expected created, got %s", result.Status)
	}
	if repo.gets != 1 || repo.puts != 1 {
		t.Errorf("expected one fetch and one write, got %d/%d", repo.gets, repo.puts)
	}
	if repo.putSHAs[0] != "" {
		t.Errorf("create must not send a version token, sent %q", repo.putSHAs[0])
	}
	if string(repo.content) != "entry one\n\n" {
		t.Errorf("remote content %q does not match local file", repo.content)
	}

	infos, errs := recorder.Snapshot()
	if len(infos) != 1 || infos[0] != MessageSuccess || len(errs) != 0 {
		t.Errorf("unexpected notifications infos=%v errors=%v", infos, errs)
	}
}

func TestPublishUpdatesWithCurrentSHA(t *testing.T) {
	repo := &fakeRepo{sha: "abc123"}
	publisher, _, _ := newPublisher(t, repo, octoSession())

	result, err := publisher.Publish(context.Background())
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if result.Status != models.PublishStatusUpdated || result.CommitSHA == "" {
		t.Errorf("unexpected result %+v", result)
	}
	if len(repo.putSHAs) != 1 || repo.putSHAs[0] != "abc123" {
		t.Errorf("expected write with sha abc123, got %v", repo.putSHAs)
	}
}

func TestPublishReplacesWholeFile(t *testing.T) {
	repo := &fakeRepo{}
	publisher, _, localPath := newPublisher(t, repo, octoSession())

	if _, err := publisher.Publish(context.Background()); err != nil {
		t.Fatalf("first Publish returned error: %v", err)
	}

	f, err := os.OpenFile(localPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open local log: %v", err)
	}
	_, _ = f.WriteString("entry two\n\n")
	f.Close()

	if _, err := publisher.Publish(context.Background()); err != nil {
		t.Fatalf("second Publish returned error: %v", err)
	}
	if string(repo.content) != "entry one\n\nentry two\n\n" {
		t.Errorf("remote content %q should equal the full local file", repo.content)
	}
	if repo.putSHAs[1] == "" {
		t.Error("second write must carry the version token from the first")
	}
}

func TestPublishFetchErrorPropagates(t *testing.T) {
	repo := &fakeRepo{getStatus: http.StatusInternalServerError}
	publisher, recorder, _ := newPublisher(t, repo, octoSession())

	result, err := publisher.Publish(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if result.Status != models.PublishStatusFailed {
		t.Errorf("expected failed, got %s", result.Status)
	}
	if repo.puts != 0 {
		t.Errorf("no write should follow a failed fetch, got %d", repo.puts)
	}
	if repo.gets != fastRetry.MaxRetries+1 {
		t.Errorf("expected the fetch to be retried %d times, got %d calls", fastRetry.MaxRetries, repo.gets)
	}
	if !errors.Is(err, github.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}

	_, errs := recorder.Snapshot()
	if len(errs) != 1 || !strings.HasPrefix(errs[0], "Error pushing logs to GitHub: ") {
		t.Errorf("unexpected error notifications %v", errs)
	}
}

func TestPublishRetriesConflictOnce(t *testing.T) {
	repo := &fakeRepo{sha: "old", putFails: []int{http.StatusConflict}}
	publisher, _, _ := newPublisher(t, repo, octoSession())

	if _, err := publisher.Publish(context.Background()); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if repo.gets != 2 || repo.puts != 2 {
		t.Errorf("expected two fetches and two writes, got %d/%d", repo.gets, repo.puts)
	}
}

func TestPublishGivesUpAfterSecondConflict(t *testing.T) {
	repo := &fakeRepo{sha: "old", putFails: []int{http.StatusConflict, http.StatusConflict}}
	publisher, _, _ := newPublisher(t, repo, octoSession())

	_, err := publisher.Publish(context.Background())
	if !errors.Is(err, github.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if repo.puts != 2 {
		t.Errorf("expected exactly two writes, got %d", repo.puts)
	}
}

func TestPublishUnauthorizedInvalidatesSession(t *testing.T) {
	repo := &fakeRepo{putFails: []int{http.StatusUnauthorized}}
	sessions := octoSession()
	publisher, _, _ := newPublisher(t, repo, sessions)

	if _, err := publisher.Publish(context.Background()); !errors.Is(err, github.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if sessions.invalidated != 1 {
		t.Errorf("expected session invalidation, got %d", sessions.invalidated)
	}
}

func TestPublishWithoutSession(t *testing.T) {
	tests := []struct {
		name     string
		sessions *staticSessions
	}{
		{"provider error", &staticSessions{err: auth.ErrNoSession}},
		{"nil session", &staticSessions{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			publisher, recorder, _ := newPublisher(t, repo, tt.sessions)

			if _, err := publisher.Publish(context.Background()); !errors.Is(err, auth.ErrNoSession) {
				t.Fatalf("expected ErrNoSession, got %v", err)
			}
			if repo.gets != 0 || repo.puts != 0 {
				t.Errorf("no remote calls expected, got %d/%d", repo.gets, repo.puts)
			}
			_, errs := recorder.Snapshot()
			if len(errs) != 1 || errs[0] != MessageAuthFailed {
				t.Errorf("unexpected error notifications %v", errs)
			}
		})
	}
}

func TestPublishMissingLocalFile(t *testing.T) {
	repo := &fakeRepo{}
	publisher, _, localPath := newPublisher(t, repo, octoSession())
	if err := os.Remove(localPath); err != nil {
		t.Fatalf("remove local log: %v", err)
	}

	if _, err := publisher.Publish(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if repo.gets != 0 {
		t.Errorf("no fetch expected, got %d", repo.gets)
	}
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	tests := []struct {
		name      string
		repo      *fakeRepo
		wantGets  int
		wantPuts  int
		wantState models.PublishStatus
	}{
		{
			name:      "rate limited fetch",
			repo:      &fakeRepo{sha: "old", getFails: []int{http.StatusTooManyRequests}},
			wantGets:  2,
			wantPuts:  1,
			wantState: models.PublishStatusUpdated,
		},
		{
			name:      "server error on write",
			repo:      &fakeRepo{putFails: []int{http.StatusServiceUnavailable, http.StatusBadGateway}},
			wantGets:  1,
			wantPuts:  3,
			wantState: models.PublishStatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher, recorder, _ := newPublisher(t, tt.repo, octoSession())

			result, err := publisher.Publish(context.Background())
			if err != nil {
				t.Fatalf("Publish returned error: %v", err)
			}
			if result.Status != tt.wantState {
				t.Errorf("expected %s, got %s", tt.wantState, result.Status)
			}
			if tt.repo.gets != tt.wantGets || tt.repo.puts != tt.wantPuts {
				t.Errorf("expected %d fetches and %d writes, got %d/%d", tt.wantGets, tt.wantPuts, tt.repo.gets, tt.repo.puts)
			}
			infos, errs := recorder.Snapshot()
			if len(infos) != 1 || len(errs) != 0 {
				t.Errorf("unexpected notifications infos=%v errors=%v", infos, errs)
			}
		})
	}
}

func TestPublishDoesNotRetryClientErrors(t *testing.T) {
	repo := &fakeRepo{putFails: []int{http.StatusForbidden}}
	publisher, _, _ := newPublisher(t, repo, octoSession())

	if _, err := publisher.Publish(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
	if repo.puts != 1 {
		t.Errorf("a 403 must not be retried, got %d writes", repo.puts)
	}
}

func TestPublishGivesUpOnLongRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3600")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"slow down"}`))
	}))
	defer srv.Close()

	client, err := github.NewClient(srv.URL, 5*time.Second, discardLogger())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	localPath := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(localPath, []byte("entry\n\n"), 0o644); err != nil {
		t.Fatalf("write local log: %v", err)
	}
	publisher := New(client, octoSession(), Options{
		LocalPath:     localPath,
		Repository:    "codetribute-repo",
		RemotePath:    "log.txt",
		CommitMessage: "Update log.txt",
		Retry:         fastRetry,
	}, &notify.Recorder{}, nil, discardLogger())

	start := time.Now()
	if _, err := publisher.Publish(context.Background()); !errors.Is(err, github.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("publish should not wait out an hour-long Retry-After, took %v", elapsed)
	}
}
