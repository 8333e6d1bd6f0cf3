// Package gateway wraps an OpenAI-protocol endpoint with admission
// control, input validation and an ordered multi-model fallback chain.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/ppiankov/elenchus/internal/model"
	"github.com/ppiankov/elenchus/internal/ratelimit"
)

// ErrRateLimited is returned when the caller's identifier has exhausted
// its request window. No network request is made.
var ErrRateLimited = errors.New("rate limit exceeded, please try again later")

// ValidationError reports oversized or empty input, rejected before any
// network request.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

// ModelFailure records one failed attempt in the fallback chain.
type ModelFailure struct {
	Model string
	Err   error
}

// AllFailedError is returned when every model in the fallback chain
// failed. Failures preserves attempt order.
type AllFailedError struct {
	Failures []ModelFailure
}

func (e *AllFailedError) Error() string {
	last := e.Failures[len(e.Failures)-1]
	return fmt.Sprintf("all %d models failed, last (%s): %v", len(e.Failures), last.Model, last.Err)
}

func (e *AllFailedError) Unwrap() error {
	return e.Failures[len(e.Failures)-1].Err
}

// Options tune a single completion request.
type Options struct {
	// JSONMode appends a strict-JSON instruction and strips markdown
	// fences from the response.
	JSONMode bool

	// MaxTokens overrides the configured response limit when > 0.
	MaxTokens int

	// Temperature overrides the configured sampling temperature when set.
	Temperature *float32
}

// Gateway sends chat completions through a fallback chain of models.
type Gateway struct {
	cfg     model.GatewayConfig
	client  *openai.Client
	limiter *ratelimit.Limiter
	pacer   *rate.Limiter
	logger  *slog.Logger
}

// New builds a gateway from configuration. The client is nil when no API
// key is configured; Complete then fails fast with a ValidationError.
func New(cfg model.GatewayConfig, limiter *ratelimit.Limiter) *Gateway {
	g := &Gateway{
		cfg:     cfg,
		limiter: limiter,
		pacer:   rate.NewLimiter(rate.Inf, 1),
		logger:  slog.Default(),
	}
	if cfg.RequestsPerSecond > 0 {
		g.pacer = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if cfg.APIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		// OpenRouter attributes traffic by these headers; other
		// OpenAI-protocol endpoints ignore them.
		clientConfig.HTTPClient = &http.Client{
			Transport: attributionTransport{base: http.DefaultTransport},
		}
		g.client = openai.NewClientWithConfig(clientConfig)
	}
	return g
}

type attributionTransport struct {
	base http.RoundTripper
}

func (t attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("HTTP-Referer", "https://github.com/ppiankov/elenchus")
	req.Header.Set("X-Title", "Elenchus")
	return t.base.RoundTrip(req)
}

// Configured reports whether the gateway can reach a remote endpoint.
func (g *Gateway) Configured() bool {
	return g.client != nil
}

// Status describes the gateway for diagnostics output.
type Status struct {
	Configured bool     `json:"configured"`
	BaseURL    string   `json:"base_url"`
	Model      string   `json:"model"`
	Fallbacks  []string `json:"fallbacks"`
}

// Describe returns the gateway's effective configuration, key excluded.
func (g *Gateway) Describe() Status {
	return Status{
		Configured: g.Configured(),
		BaseURL:    g.cfg.BaseURL,
		Model:      g.cfg.Model,
		Fallbacks:  append([]string(nil), g.cfg.FallbackModels...),
	}
}

// Complete sends the messages through the fallback chain and returns the
// first successful response text. Rate-limit and validation failures
// return before any network request.
func (g *Gateway) Complete(ctx context.Context, messages []openai.ChatCompletionMessage, identifier string, opts Options) (string, error) {
	if g.client == nil {
		return "", &ValidationError{Reason: "no API key configured"}
	}
	if g.limiter != nil && identifier != "" && !g.limiter.Allow(identifier) {
		return "", ErrRateLimited
	}
	if err := g.validate(messages); err != nil {
		return "", err
	}

	if opts.JSONMode {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Respond with valid JSON only. Do not wrap the JSON in markdown code fences.",
		})
	}

	var failures []ModelFailure
	for _, m := range g.chain() {
		text, err := g.attempt(ctx, m, messages, opts)
		if err != nil {
			g.logger.Warn("model attempt failed", "model", m, "error", err)
			failures = append(failures, ModelFailure{Model: m, Err: err})
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if opts.JSONMode {
			text = StripFences(text)
		}
		return text, nil
	}
	if len(failures) == 0 {
		return "", &ValidationError{Reason: "no models configured"}
	}
	return "", &AllFailedError{Failures: failures}
}

func (g *Gateway) validate(messages []openai.ChatCompletionMessage) error {
	if len(messages) == 0 {
		return &ValidationError{Reason: "no messages"}
	}
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	if total == 0 {
		return &ValidationError{Reason: "empty message content"}
	}
	if g.cfg.MaxInputChars > 0 && total > g.cfg.MaxInputChars {
		return &ValidationError{
			Reason: fmt.Sprintf("input too large: %d chars exceeds limit of %d", total, g.cfg.MaxInputChars),
		}
	}
	return nil
}

// chain returns the primary model followed by the fallbacks, deduplicated
// in declared order.
func (g *Gateway) chain() []string {
	seen := make(map[string]bool, 1+len(g.cfg.FallbackModels))
	var out []string
	for _, m := range append([]string{g.cfg.Model}, g.cfg.FallbackModels...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func (g *Gateway) attempt(ctx context.Context, modelName string, messages []openai.ChatCompletionMessage, opts Options) (string, error) {
	if err := g.pacer.Wait(ctx); err != nil {
		return "", err
	}

	timeout := time.Duration(g.cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.cfg.MaxTokens
	}
	temperature := g.cfg.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	resp, err := g.client.CreateChatCompletion(attemptCtx, openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from %s", modelName)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("blank completion from %s", modelName)
	}
	return text, nil
}

// StripFences removes a wrapping markdown code fence, with or without a
// language tag, from model output.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		first := strings.TrimSpace(trimmed[:i])
		// Drop a language tag such as "json" on the fence line.
		if first == "" || !strings.ContainsAny(first, "{}[]\"") {
			trimmed = trimmed[i+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
