// Package openai implements ai.Completer over any OpenAI-compatible chat completions API
// (Groq by default).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/interviewd/internal/ai"
	"github.com/spigell/interviewd/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai"
	DefaultModel   = "llama-3.3-70b-versatile"

	defaultTimeout     = 30 * time.Second
	defaultRateLimit   = 2.0
	defaultBurst       = 4
	defaultMaxRetries  = 3
	defaultBaseBackoff = time.Second
	defaultTemperature = 0.4
	defaultMaxTokens   = 1024
	maxLogLength       = 200
)

type Config struct {
	BaseURL    string
	Model      string
	APIKey     string
	Timeout    time.Duration
	RateLimit  float64
	Burst      int
	MaxRetries int
}

// Client is safe for concurrent use. The rate limiter is shared by all sessions.
type Client struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai-compatible api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultMaxRetries
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		model:      model,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(limit), burst),
		maxRetries: retries,
		backoff:    defaultBaseBackoff,
		logger:     logger,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Complete implements ai.Completer. Failures are reported as ai.ErrGenerationUnavailable.
func (c *Client) Complete(ctx context.Context, req ai.Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %w", ai.ErrGenerationUnavailable, err)
	}

	body := chatRequest{
		Model:       c.model,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
	if system := strings.TrimSpace(req.System); system != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: system})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	c.logger.Debug("chat completion request",
		zap.String("task", req.Task),
		zap.Int("prompt_length", utf8.RuneCountInString(req.Prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(req.Prompt, maxLogLength)),
	)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff * time.Duration(1<<(attempt-1))
			if err := utils.WaitFor(ctx, backoff); err != nil {
				return "", fmt.Errorf("%w: %w", ai.ErrGenerationUnavailable, err)
			}
		}

		out, err := c.doRequest(ctx, body)
		if err == nil {
			c.logger.Debug("chat completion response",
				zap.String("task", req.Task),
				zap.String("response_preview", utils.TruncateForLog(out, maxLogLength)),
			)
			return out, nil
		}

		lastErr = err
		var retryable *retryableError
		if !errors.As(err, &retryable) {
			break
		}
		c.logger.Warn("chat completion failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	return "", fmt.Errorf("%w: %w", ai.ErrGenerationUnavailable, lastErr)
}

func (c *Client) doRequest(ctx context.Context, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("api request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: errors.New("rate limited (429)")}
	}

	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, utils.TruncateForLog(string(data), maxLogLength))}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("api error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("api error (%d): %s", resp.StatusCode, utils.TruncateForLog(string(data), maxLogLength))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", errors.New("empty response from api")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

var _ ai.Completer = (*Client)(nil)
