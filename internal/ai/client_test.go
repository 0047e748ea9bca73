package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return &ipv4Server{URL: "http://" + ln.Addr().String(), srv: srv}
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

// statusSequence answers /chat/completions with the given statuses in order,
// repeating the last one.
func statusSequence(t *testing.T, statuses []int, headers []http.Header, calls *int32) *ipv4Server {
	t.Helper()
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(calls, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if i < len(headers) {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		w.WriteHeader(statuses[i])
		if statuses[i] == http.StatusOK {
			_ = json.NewEncoder(w).Encode(ChatResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: "ok"}}}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "slow down"}})
	}))
}

func testClient(url string, retryMax int) *Client {
	return NewClient(Config{APIKey: "test", BaseURL: url, HTTPTimeout: 2 * time.Second, RetryMax: retryMax, BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond})
}

var hello = ChatRequest{Model: "test-model", Messages: []Message{{Role: "user", Content: "hi"}}, MaxTokens: 1}

func TestChatRetriesOn429(t *testing.T) {
	var calls int32
	srv := statusSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"0"}}}, &calls)
	defer srv.Close()

	resp, err := testClient(srv.URL, 3).Chat(context.Background(), hello)
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if resp.Text() != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestChatHonorsRetryAfter(t *testing.T) {
	var calls int32
	srv := statusSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"1"}}}, &calls)
	defer srv.Close()

	start := time.Now()
	if _, err := testClient(srv.URL, 3).Chat(context.Background(), hello); err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("expected about 1s delay from Retry-After, got %v", elapsed)
	}
}

func TestChatRateLimitExhausted(t *testing.T) {
	var calls int32
	srv := statusSequence(t, []int{429}, []http.Header{{"Retry-After": {"0"}}}, &calls)
	defer srv.Close()

	_, err := testClient(srv.URL, 2).Chat(context.Background(), hello)
	if _, ok := RateLimited(err); !ok {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestChatDoesNotRetryBadRequest(t *testing.T) {
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("X-Request-Id", "req_test_123")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad req", "code": "bad_request"}})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).Chat(context.Background(), hello)
	var bre *BadRequestError
	if !errors.As(err, &bre) {
		t.Fatalf("expected BadRequestError, got %v", err)
	}
	if !strings.Contains(err.Error(), "req_test_123") {
		t.Fatalf("expected request id in error, got: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestChatClassifiesAuth(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "invalid key"}})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).Chat(context.Background(), hello)
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestChatMissingKey(t *testing.T) {
	_, err := NewClient(Config{}).Chat(context.Background(), hello)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestChatSendsBearerAndBody(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("authorization header = %q", got)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 1 {
			t.Errorf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": "hey"}}},
			"usage":   map[string]any{"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4},
		})
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL, 1).Chat(context.Background(), hello)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Text() != "hey" || resp.Usage.TotalTokens != 4 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestListModels(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{
			map[string]any{"id": "b-model"},
			map[string]any{"id": "a-model"},
		}})
	}))
	defer srv.Close()

	ids, err := testClient(srv.URL, 1).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if strings.Join(ids, ",") != "b-model,a-model" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestRateLimiterSpacesRequests(t *testing.T) {
	var calls int32
	srv := statusSequence(t, []int{200}, nil, &calls)
	defer srv.Close()

	c := NewClient(Config{APIKey: "test", BaseURL: srv.URL, RequestsPerMinute: 120})
	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := c.Chat(context.Background(), hello); err != nil {
			t.Fatalf("Chat: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Fatalf("expected limiter to space requests by ~500ms, got %v", elapsed)
	}
}

func TestDefaultBaseURL(t *testing.T) {
	cases := map[string]string{
		ProviderGroq:       "https://api.groq.com/openai/v1",
		"":                 "https://api.groq.com/openai/v1",
		ProviderOpenRouter: "https://openrouter.ai/api/v1",
		ProviderOpenAI:     "https://api.openai.com/v1",
	}
	for p, want := range cases {
		if got := DefaultBaseURL(p); got != want {
			t.Errorf("DefaultBaseURL(%q) = %q, want %q", p, got, want)
		}
	}
}

func TestNewRuntime(t *testing.T) {
	for _, p := range []string{ProviderGroq, ProviderOpenRouter, ProviderOllama, ""} {
		if _, err := NewRuntime(Config{Provider: p}); err != nil {
			t.Errorf("NewRuntime(%q): %v", p, err)
		}
	}
	if _, err := NewRuntime(Config{Provider: "nope"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestContextTokens(t *testing.T) {
	if got := ContextTokens(DefaultModel); got != 131072 {
		t.Fatalf("ContextTokens(%q) = %d", DefaultModel, got)
	}
	if got := ContextTokens("unknown"); got != fallbackContextTokens {
		t.Fatalf("unknown model budget = %d", got)
	}
	MergeCatalog(map[string]ModelInfo{"custom": {Provider: ProviderOllama, ContextTokens: 1000}})
	if mi, ok := LookupModel("custom"); !ok || mi.Name != "custom" || mi.ContextTokens != 1000 {
		t.Fatalf("merged entry = %+v, %v", mi, ok)
	}
}
