package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is an OpenAI-style chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Choice is one completion candidate.
type Choice struct {
	Message Message `json:"message"`
}

// ChatResponse is the decoded completion.
type ChatResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Text returns the content of the first choice.
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Client talks to an OpenAI-compatible chat endpoint (Groq, OpenRouter,
// OpenAI). It retries 429 and 5xx responses with jittered backoff and may
// throttle itself with a token bucket.
type Client struct {
	httpClient *http.Client
	provider   string
	apiKey     string
	baseURL    string
	retryMax   int
	baseDelay  time.Duration
	maxDelay   time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient builds a Client from cfg. Unset fields take the provider defaults.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults(3, 500*time.Millisecond, 4*time.Second)
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL(cfg.Provider)
	}
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		provider:   cfg.Provider,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		retryMax:   cfg.RetryMax,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		logger:     cfg.Logger.Named("ai"),
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

// Chat sends req and returns the completion. A missing key fails fast with
// ErrMissingAPIKey.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var out *ChatResponse
	err = c.retry(ctx, func() (time.Duration, bool, error) {
		resp, err := c.post(ctx, "/chat/completions", payload)
		if err != nil {
			return 0, isRetryableNetErr(err), fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := readAPIError(resp)
			wait, retryable := retryHint(resp)
			return wait, retryable, classifyAPIError(apiErr, resp)
		}
		var decoded ChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return 0, false, fmt.Errorf("decode response: %w", err)
		}
		decoded.RequestID = extractRequestID(resp)
		out = &decoded
		return 0, false, nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("chat completed",
		zap.String("provider", c.provider),
		zap.String("model", req.Model),
		zap.String("request_id", out.RequestID),
		zap.Int("prompt_tokens", out.Usage.PromptTokens),
		zap.Int("completion_tokens", out.Usage.CompletionTokens),
	)
	return out, nil
}

// ListModels returns the model ids the provider currently serves, sorted as
// the provider returns them.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyAPIError(readAPIError(resp), resp)
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	ids := make([]string, 0, len(body.Data))
	for _, m := range body.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (c *Client) post(ctx context.Context, path string, payload []byte) (*http.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.provider == ProviderOpenRouter {
		httpReq.Header.Set("HTTP-Referer", "https://github.com/yassinexng/datawise")
		httpReq.Header.Set("X-Title", "datawise")
	}
	return c.httpClient.Do(httpReq)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// retry runs attempt until it succeeds, reports a non-retryable error or the
// attempt budget is spent. A positive wait from attempt overrides backoff.
func (c *Client) retry(ctx context.Context, attempt func() (time.Duration, bool, error)) error {
	return retryLoop(ctx, c.retryMax, c.baseDelay, c.maxDelay, c.logger, attempt)
}

func retryLoop(ctx context.Context, maxAttempts int, baseDelay, maxDelay time.Duration, logger *zap.Logger, attempt func() (time.Duration, bool, error)) error {
	backoff := baseDelay
	var lastErr error
	for i := 1; i <= maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait, retryable, err := attempt()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || i == maxAttempts {
			break
		}
		sleep := wait
		if sleep <= 0 {
			sleep = withJitter(backoff)
			if maxDelay > 0 && sleep > maxDelay {
				sleep = maxDelay
			}
			backoff *= 2
		}
		logger.Debug("retrying request", zap.Int("attempt", i), zap.Duration("sleep", sleep), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return lastErr
}

func readAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp)}
	src := raw
	if nested, ok := raw["error"].(map[string]any); ok {
		src = nested
	} else if msg, ok := raw["error"].(string); ok {
		apiErr.Message = msg
	}
	if msg, ok := src["message"].(string); ok && apiErr.Message == "" {
		apiErr.Message = msg
	}
	if code, ok := src["code"].(string); ok {
		apiErr.Code = code
	}
	return apiErr
}

// retryHint reports whether a failed response is worth retrying and how long
// the provider asked us to wait.
func retryHint(resp *http.Response) (time.Duration, bool) {
	sc := resp.StatusCode
	if sc != http.StatusTooManyRequests && (sc < 500 || sc > 599) {
		return 0, false
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := parseRetryAfterSeconds(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second, true
		}
	}
	return 0, true
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}

// parseRetryAfterSeconds reads a Retry-After value given as seconds or an
// HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// classifyAPIError maps an APIError to the typed errors in errors.go.
func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	sc := apiErr.StatusCode
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc == http.StatusNotFound:
		if apiErr.Code == "model_not_found" || containsAllFold(apiErr.Message, "model", "not", "found") {
			return &ModelNotFoundError{APIError: apiErr}
		}
		return apiErr
	case sc == http.StatusBadRequest:
		return &BadRequestError{APIError: apiErr}
	case apiErr.Code == "quota_exceeded" || containsAnyFold(apiErr.Message, "quota", "billing", "limit exceeded"):
		return &QuotaExceededError{APIError: apiErr}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

func containsAllFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if !containsFold(s, sub) {
			return false
		}
	}
	return true
}

func containsAnyFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if s == "" || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Groq-Id"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter spreads d by ±20%.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	out := time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
	if out <= 0 {
		return d
	}
	return out
}
