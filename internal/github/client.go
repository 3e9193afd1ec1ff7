// Package github adapts go-github to the few REST endpoints the work-log
// publisher needs: repository contents, repository creation and identity.
// Failures are translated into the sentinels below so callers never handle
// go-github's error types directly.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"
)

var (
	// ErrNotFound marks a 404 from the API.
	ErrNotFound = errors.New("github: not found")
	// ErrConflict marks a rejected write because the version token is stale.
	ErrConflict = errors.New("github: version conflict")
	// ErrUnauthorized marks a 401 from the API.
	ErrUnauthorized = errors.New("github: unauthorized")
	// ErrRepositoryExists marks a create-repository call for a name already taken.
	ErrRepositoryExists = errors.New("github: repository already exists")
	// ErrRateLimited marks a primary or secondary rate limit rejection.
	ErrRateLimited = errors.New("github: rate limited")
	// ErrUnavailable marks a 5xx from the API.
	ErrUnavailable = errors.New("github: service unavailable")
)

// APIError carries the status and message of a failed API call.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	// RetryAfter is the wait the server asked for, zero when it gave none.
	RetryAfter time.Duration
	kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github API %s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap exposes the sentinel matching the status, if any.
func (e *APIError) Unwrap() error {
	return e.kind
}

// Transient reports whether err is a rate limit or server failure worth
// retrying, along with the delay the server requested.
func Transient(err error) (time.Duration, bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	if apiErr.kind == ErrRateLimited || apiErr.kind == ErrUnavailable {
		return apiErr.RetryAfter, true
	}
	return 0, false
}

// Client talks to the GitHub REST API. Tokens are passed per call because
// the session can change between cycles.
type Client struct {
	api    *gh.Client
	logger *slog.Logger
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse github API url: %w", err)
	}

	api := gh.NewClient(&http.Client{Timeout: timeout})
	api.BaseURL = base

	return &Client{
		api:    api,
		logger: logger,
	}, nil
}

// Content is a file returned by the contents API.
type Content struct {
	Name string
	Path string
	SHA  string
	Size int
}

// PutContentRequest creates or updates a file. SHA must carry the current
// version token when the file exists and be empty when it does not.
type PutContentRequest struct {
	Message string
	Content []byte
	SHA     string
	Branch  string
}

// PutContentResponse describes the written file and commit.
type PutContentResponse struct {
	ContentSHA string
	CommitSHA  string
	CommitURL  string
}

// Repository is the subset of repository fields the daemon uses.
type Repository struct {
	ID       int64
	Name     string
	FullName string
	Private  bool
	HTMLURL  string
}

// User is the authenticated principal.
type User struct {
	Login string
	ID    int64
	// Scopes lists classic OAuth scopes from X-OAuth-Scopes. Nil when the
	// header is absent, which is the case for fine-grained tokens.
	Scopes []string
}

// GetContent fetches a file. A missing file yields an error matching
// ErrNotFound.
func (c *Client) GetContent(ctx context.Context, token, owner, repo, path string) (*Content, error) {
	start := time.Now()
	file, _, resp, err := c.as(token).Repositories.GetContents(ctx, owner, repo, path, nil)
	c.logCall("get_content", start, resp)
	if err != nil {
		return nil, translate(err)
	}
	if file == nil {
		return nil, fmt.Errorf("github: %s is a directory", path)
	}

	return &Content{
		Name: file.GetName(),
		Path: file.GetPath(),
		SHA:  file.GetSHA(),
		Size: file.GetSize(),
	}, nil
}

// PutContent creates or updates a file. A stale or missing SHA on an existing
// file yields an error matching ErrConflict.
func (c *Client) PutContent(ctx context.Context, token, owner, repo, path string, req PutContentRequest) (*PutContentResponse, error) {
	message := req.Message
	opts := &gh.RepositoryContentFileOptions{
		Message: &message,
		Content: req.Content,
	}
	if req.SHA != "" {
		sha := req.SHA
		opts.SHA = &sha
	}
	if req.Branch != "" {
		branch := req.Branch
		opts.Branch = &branch
	}

	api := c.as(token)
	write := api.Repositories.CreateFile
	if opts.SHA != nil {
		write = api.Repositories.UpdateFile
	}

	start := time.Now()
	result, resp, err := write(ctx, owner, repo, path, opts)
	c.logCall("put_content", start, resp)
	if err != nil {
		return nil, translate(err)
	}

	out := &PutContentResponse{
		CommitSHA: result.Commit.GetSHA(),
		CommitURL: result.Commit.GetHTMLURL(),
	}
	if result.Content != nil {
		out.ContentSHA = result.Content.GetSHA()
	}
	return out, nil
}

// CreateRepository creates a repository for the authenticated user.
func (c *Client) CreateRepository(ctx context.Context, token, name string, private bool) (*Repository, error) {
	start := time.Now()
	repo, resp, err := c.as(token).Repositories.Create(ctx, "", &gh.Repository{
		Name:    &name,
		Private: &private,
	})
	c.logCall("create_repository", start, resp)
	if err != nil {
		return nil, translate(err)
	}

	return &Repository{
		ID:       repo.GetID(),
		Name:     repo.GetName(),
		FullName: repo.GetFullName(),
		Private:  repo.GetPrivate(),
		HTMLURL:  repo.GetHTMLURL(),
	}, nil
}

// AuthenticatedUser returns the owner of token.
func (c *Client) AuthenticatedUser(ctx context.Context, token string) (*User, error) {
	start := time.Now()
	user, resp, err := c.as(token).Users.Get(ctx, "")
	c.logCall("get_user", start, resp)
	if err != nil {
		return nil, translate(err)
	}

	out := &User{
		Login: user.GetLogin(),
		ID:    user.GetID(),
	}
	if resp != nil && resp.Response != nil {
		out.Scopes = parseScopes(resp.Header)
	}
	return out, nil
}

func (c *Client) as(token string) *gh.Client {
	if token == "" {
		return c.api
	}
	return c.api.WithAuthToken(token)
}

func (c *Client) logCall(operation string, start time.Time, resp *gh.Response) {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	c.logger.Debug("github API call",
		"operation", operation,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds())
}

func parseScopes(header http.Header) []string {
	raw, ok := header[http.CanonicalHeaderKey("X-OAuth-Scopes")]
	if !ok {
		return nil
	}

	scopes := []string{}
	for _, scope := range strings.Split(strings.Join(raw, ","), ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

// translate turns go-github's error types into an *APIError. Transport
// failures are returned wrapped but unclassified.
func translate(err error) error {
	var (
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
		respErr  *gh.ErrorResponse
	)

	switch {
	case errors.As(err, &rateErr):
		apiErr := newAPIError(rateErr.Response, rateErr.Message)
		apiErr.kind = ErrRateLimited
		if wait := time.Until(rateErr.Rate.Reset.Time); wait > apiErr.RetryAfter {
			apiErr.RetryAfter = wait
		}
		return apiErr
	case errors.As(err, &abuseErr):
		apiErr := newAPIError(abuseErr.Response, abuseErr.Message)
		apiErr.kind = ErrRateLimited
		if abuseErr.RetryAfter != nil && *abuseErr.RetryAfter > 0 {
			apiErr.RetryAfter = *abuseErr.RetryAfter
		}
		return apiErr
	case errors.As(err, &respErr):
		message := respErr.Message
		for _, e := range respErr.Errors {
			if e.Message != "" {
				message += "; " + e.Message
			}
		}
		return newAPIError(respErr.Response, message)
	}

	return fmt.Errorf("github request: %w", err)
}

func newAPIError(resp *http.Response, message string) *APIError {
	apiErr := &APIError{Message: message}
	if resp == nil {
		return apiErr
	}

	apiErr.StatusCode = resp.StatusCode
	if resp.Request != nil {
		apiErr.Method = resp.Request.Method
		apiErr.Path = resp.Request.URL.Path
	}
	apiErr.kind = classify(apiErr.Method, apiErr.StatusCode, message)
	apiErr.RetryAfter = retryAfter(resp.Header)
	return apiErr
}

func classify(method string, status int, message string) error {
	lower := strings.ToLower(message)

	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusUnprocessableEntity && method == http.MethodPut && strings.Contains(lower, "sha"):
		return ErrConflict
	case status == http.StatusUnprocessableEntity && method == http.MethodPost && strings.Contains(lower, "already exists"):
		return ErrRepositoryExists
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= http.StatusInternalServerError:
		return ErrUnavailable
	}
	return nil
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(header http.Header) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header.Get("Retry-After")))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
