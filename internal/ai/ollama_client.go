package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultOllamaHost is the local Ollama endpoint.
const DefaultOllamaHost = "http://127.0.0.1:11434"

// OllamaClient talks to a local Ollama runtime over /api/chat.
type OllamaClient struct {
	httpClient *http.Client
	host       string
	retryMax   int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *zap.Logger
}

// NewOllamaClient builds a client for cfg.Host (DefaultOllamaHost when empty).
func NewOllamaClient(cfg Config) *OllamaClient {
	cfg = cfg.withDefaults(2, 200*time.Millisecond, time.Second)
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = DefaultOllamaHost
	}
	return &OllamaClient{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		host:       host,
		retryMax:   cfg.RetryMax,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		logger:     cfg.Logger.Named("ollama"),
	}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         Message `json:"message"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// Chat sends a non-streaming chat request and maps the reply to ChatResponse.
func (c *OllamaClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	oreq := ollamaChatRequest{Model: req.Model, Messages: req.Messages}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		oreq.Options = map[string]any{}
	}
	if req.Temperature > 0 {
		oreq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}
	payload, err := json.Marshal(oreq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var out *ChatResponse
	err = retryLoop(ctx, c.retryMax, c.baseDelay, c.maxDelay, c.logger, func() (time.Duration, bool, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(payload))
		if err != nil {
			return 0, false, fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return 0, isRetryableNetErr(err), &UnreachableError{Host: c.host, Err: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := readAPIError(resp)
			switch {
			case resp.StatusCode == http.StatusNotFound:
				return 0, false, &ModelNotFoundError{APIError: apiErr}
			case resp.StatusCode == http.StatusBadRequest:
				return 0, false, &BadRequestError{APIError: apiErr}
			case resp.StatusCode >= 500:
				return 0, true, &ServerError{APIError: apiErr}
			}
			return 0, false, apiErr
		}
		var oresp ollamaChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&oresp); err != nil {
			return 0, false, fmt.Errorf("decode response: %w", err)
		}
		out = &ChatResponse{
			Choices:   []Choice{{Message: Message{Role: "assistant", Content: oresp.Message.Content}}},
			Usage:     Usage{PromptTokens: oresp.PromptEvalCount, CompletionTokens: oresp.EvalCount, TotalTokens: oresp.PromptEvalCount + oresp.EvalCount},
			RequestID: fmt.Sprintf("ollama_%d", time.Now().UnixNano()),
		}
		return 0, false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
