package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/crewd/internal/logging"
)

// ClientConfig configures the HTTP executor.
type ClientConfig struct {
	// Endpoint is an OpenAI-compatible chat completions URL.
	Endpoint string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// RequestTimeout bounds a single HTTP attempt.
	RequestTimeout time.Duration
	// MaxRetries is how many times a retryable failure is re-attempted.
	MaxRetries int
	// RateLimitRPS caps outbound requests per second; zero disables.
	RateLimitRPS float64
	// RateBurst is the limiter burst size.
	RateBurst int
}

// Client is an Executor backed by an OpenAI-compatible HTTP endpoint.
// Requests are rate limited and retried with exponential backoff on
// transient failures.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *logging.Logger
}

var _ Executor = (*Client)(nil)

// NewClient returns an HTTP executor for cfg.
func NewClient(cfg ClientConfig, logger *logging.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("executor endpoint is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter: limiter,
		logger:  logger.Named("executor"),
	}, nil
}

type chatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	ToolCalls []struct {
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls,omitempty"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke runs one agent step, retrying transient endpoint failures.
func (c *Client) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	body, err := json.Marshal(chatRequest{
		Model: req.Role.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.Role.SystemPrompt},
			{Role: "user", Content: BuildUserPrompt(req)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			c.logger.Debug(ctx, "retrying agent step",
				zap.String("role", req.Role.Name),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		result, retryable, err := c.attempt(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, fmt.Errorf("agent step %s failed: %w", req.Role.Name, lastErr)
}

func (c *Client) attempt(ctx context.Context, body []byte) (*InvokeResult, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// Network errors are worth retrying.
		return nil, true, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, false, fmt.Errorf("endpoint error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, false, fmt.Errorf("endpoint returned no choices")
	}

	msg := parsed.Choices[0].Message
	result := &InvokeResult{
		Output:     msg.Content,
		TokensUsed: parsed.Usage.TotalTokens,
		Model:      parsed.Model,
	}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
