// Package summarizer asks an OpenAI-compatible chat endpoint to describe a
// batch of file activity. Summaries are best effort.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codetribute/codetribute/internal/config"
	"github.com/codetribute/codetribute/internal/metrics"
	"github.com/codetribute/codetribute/internal/models"
)

const (
	// FallbackEmpty is returned when the model answers without any text.
	FallbackEmpty = "Summary could not be generated."
	// FallbackError is returned when the request fails for any reason.
	FallbackError = "Error generating summary."
)

// ErrUninitialized is returned by Generate when no API client is configured.
var ErrUninitialized = errors.New("summarizer client is not initialized")

// ChatCompleter is the subset of the go-openai client the summarizer needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Summarizer wraps a chat-completion client.
type Summarizer struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates a summarizer around an existing client. A nil client yields a
// summarizer whose Generate always fails with ErrUninitialized.
func New(client ChatCompleter, model string, timeout time.Duration, collector *metrics.Collector, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		client:  client,
		model:   model,
		timeout: timeout,
		metrics: collector,
		logger:  logger,
	}
}

// NewFromConfig builds the go-openai client for the configured endpoint. An
// empty API key leaves the summarizer uninitialized.
func NewFromConfig(cfg config.SummarizerConfig, collector *metrics.Collector, logger *slog.Logger) *Summarizer {
	var client ChatCompleter
	if cfg.APIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		client = openai.NewClientWithConfig(clientConfig)
		logger.Info("summarizer client initialized", "base_url", clientConfig.BaseURL, "model", cfg.Model)
	}

	return New(client, cfg.Model, cfg.Timeout, collector, logger)
}

// Initialized reports whether a client is configured.
func (s *Summarizer) Initialized() bool {
	return s.client != nil
}

// Generate requests a summary. It returns ErrUninitialized without a client
// and the transport error on failure. A response with no text yields
// FallbackEmpty and a nil error.
func (s *Summarizer) Generate(ctx context.Context, batch []models.ActivityRecord) (string, error) {
	if s.client == nil {
		return "", ErrUninitialized
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPrompt(batch),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	s.logger.Info("summary request complete",
		"model", s.model,
		"records", len(batch),
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return FallbackEmpty, nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Summarize always returns text: the model's summary, FallbackEmpty, or
// FallbackError when Generate fails for any reason. The status describes
// which path was taken.
func (s *Summarizer) Summarize(ctx context.Context, batch []models.ActivityRecord) (string, models.SummaryStatus) {
	summary, err := s.generateSafely(ctx, batch)
	if err != nil {
		s.logger.Error("error summarizing work log", "error", err)
		s.metrics.SummaryProduced(string(models.SummaryStatusError))
		return FallbackError, models.SummaryStatusError
	}

	status := models.SummaryStatusGenerated
	if summary == FallbackEmpty {
		status = models.SummaryStatusEmpty
	}
	s.metrics.SummaryProduced(string(status))
	return summary, status
}

func (s *Summarizer) generateSafely(ctx context.Context, batch []models.ActivityRecord) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("summarizer panic: %v", r)
		}
	}()
	return s.Generate(ctx, batch)
}
