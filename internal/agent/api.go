package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services"
)

const (
	defaultAPITimeout   = 120 * time.Second
	defaultAPIAttempts  = 3
	defaultAPIBaseDelay = 1 * time.Second
	defaultAPIMaxDelay  = 10 * time.Second
	maxErrorBodySnippet = 2048
)

// APIExecutor runs tasks against a hosted chat-completions endpoint.
type APIExecutor struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// APIOption customizes the executor.
type APIOption func(*APIExecutor)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) APIOption {
	return func(e *APIExecutor) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the in-process retry count.
func WithRetryMaxAttempts(attempts int) APIOption {
	return func(e *APIExecutor) {
		e.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) APIOption {
	return func(e *APIExecutor) {
		e.retryBaseDelay = baseDelay
		e.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) APIOption {
	return func(e *APIExecutor) {
		e.sleeper = sleeper
	}
}

// NewAPIExecutor constructs the hosted-endpoint executor.
func NewAPIExecutor(cfg *config.Config, logger *slog.Logger, opts ...APIOption) *APIExecutor {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}
	executor := &APIExecutor{
		cfg:              cfg,
		logger:           logger,
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultAPIAttempts,
		retryBaseDelay:   defaultAPIBaseDelay,
		retryMaxDelay:    defaultAPIMaxDelay,
	}
	for _, opt := range opts {
		opt(executor)
	}
	return executor
}

// Execute runs one attempt of an api-mode task. Api mode must be enabled and
// hold a credential before any request goes out; a task can never silently
// fall back to the cli path.
func (e *APIExecutor) Execute(ctx context.Context, task *queue.Task) (*Result, error) {
	if !e.cfg.API.Enabled {
		return nil, services.Wrap(services.ErrConfiguration, "agent", "api",
			"api mode is disabled; set [api] enabled = true", nil)
	}
	if strings.TrimSpace(e.cfg.API.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "agent", "api",
			fmt.Sprintf("api key missing; set [api] api_key or export %s", e.cfg.API.APIKeyEnv), nil)
	}
	model := e.cfg.ResolveModel(task.Model)
	if model == "" {
		return nil, services.Wrap(services.ErrConfiguration, "agent", "api",
			"no model configured; set [api] model", nil)
	}

	messages := make([]chatMessage, 0, 2)
	if agentName := strings.TrimSpace(task.Agent); agentName != "" {
		messages = append(messages, chatMessage{
			Role:    "system",
			Content: fmt.Sprintf("You are the %q agent. Complete the task you are given and reply with the result.", agentName),
		})
	}
	messages = append(messages, chatMessage{Role: "user", Content: task.Prompt})

	e.logger.Info("sending chat completion",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String("model", model))

	started := time.Now()
	content, usage, err := e.completeWithRetry(ctx, chatRequest{Model: model, Messages: messages})
	if err != nil {
		return nil, e.classify(err)
	}
	return &Result{
		Output: content,
		Usage: Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
			Duration:         time.Since(started),
		},
	}, nil
}

// HealthCheck issues a minimal completion to verify the endpoint, credential,
// and configured model are usable.
func (e *APIExecutor) HealthCheck(ctx context.Context) error {
	if !e.cfg.API.Enabled {
		return services.Wrap(services.ErrConfiguration, "agent", "api",
			"api mode is disabled; set [api] enabled = true", nil)
	}
	if strings.TrimSpace(e.cfg.API.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "agent", "api",
			fmt.Sprintf("api key missing; set [api] api_key or export %s", e.cfg.API.APIKeyEnv), nil)
	}
	model := e.cfg.ResolveModel("")
	if model == "" {
		return services.Wrap(services.ErrConfiguration, "agent", "api",
			"no model configured; set [api] model", nil)
	}

	payload := chatRequest{
		Model:     model,
		Messages:  []chatMessage{{Role: "user", Content: "Reply with the single word OK."}},
		MaxTokens: 8,
	}
	if _, _, err := e.completeWithRetry(ctx, payload); err != nil {
		return e.classify(err)
	}
	return nil
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		Text         string      `json:"text"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage chatUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("chat request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *APIExecutor) completeWithRetry(ctx context.Context, payload chatRequest) (string, chatUsage, error) {
	attempts := e.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, usage, err := e.sendOnce(ctx, payload)
		if err == nil {
			return content, usage, nil
		}

		delay, retry := e.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return "", chatUsage{}, err
		}
		e.logger.Warn("chat completion attempt failed; retrying",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err))
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return "", chatUsage{}, sleepErr
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return "", chatUsage{}, fmt.Errorf("chat completion failed after %d attempts: %w", attempts, lastErr)
}

func (e *APIExecutor) sendOnce(ctx context.Context, payload chatRequest) (string, chatUsage, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", chatUsage{}, fmt.Errorf("chat request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.API.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", chatUsage{}, fmt.Errorf("chat request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.cfg.API.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", chatUsage{}, fmt.Errorf("chat request: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", chatUsage{}, fmt.Errorf("chat request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", chatUsage{}, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       snippet(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", chatUsage{}, fmt.Errorf("chat request: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", chatUsage{}, fmt.Errorf("chat request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return "", chatUsage{}, errors.New("chat request: empty choices")
	}

	choice := completion.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		content = strings.TrimSpace(choice.Text)
	}
	if content == "" {
		return "", chatUsage{}, fmt.Errorf("chat request: empty completion (finish_reason=%q)", choice.FinishReason)
	}
	return content, completion.Usage, nil
}

// classify maps request failures onto the retry taxonomy: rejected
// credentials are configuration errors, everything else stays an execution
// failure that consumes retry budget.
func (e *APIExecutor) classify(err error) error {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden {
			return services.Wrap(services.ErrConfiguration, "agent", "api",
				"endpoint rejected the api credential", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrExecution, "agent", "api", "request timed out", err)
	}
	return services.Wrap(services.ErrExecution, "agent", "api", "chat completion failed", err)
}

func (e *APIExecutor) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil {
		return 0, false
	}
	if ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return e.capDelay(statusErr.RetryAfter), true
			}
			return e.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return e.backoffDelay(attempt), true
	}
	return 0, false
}

func (e *APIExecutor) backoffDelay(attempt int) time.Duration {
	base := e.retryBaseDelay
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > e.retryMaxDelay/2 {
			delay = e.retryMaxDelay
			break
		}
		delay *= 2
	}
	return e.capDelay(delay)
}

func (e *APIExecutor) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if e.retryMaxDelay > 0 && delay > e.retryMaxDelay {
		return e.retryMaxDelay
	}
	return delay
}

func (e *APIExecutor) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if e.sleeper != nil {
		e.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func snippet(body string) string {
	trimmed := strings.TrimSpace(body)
	if len(trimmed) > maxErrorBodySnippet {
		return trimmed[:maxErrorBodySnippet] + "..."
	}
	return trimmed
}
