package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"qimen-smart-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.OpenAIConfig {
	return config.OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "deepseek-chat",
		Generation: config.OpenAIGenerationConfig{
			Temperature: 0.7,
			TopP:        0.9,
			MaxTokens:   8000,
		},
	}
}

func TestConfigured(t *testing.T) {
	assert.True(t, NewClient(testConfig("http://example.com")).Configured())
	assert.False(t, NewClient(config.OpenAIConfig{}).Configured())
}

func TestStreamChatMessages(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"He"}}]}` + "\n\n"))
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"llo"}}]}` + "\n\n"))
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{}}]}` + "\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	var chunks []string
	full, err := client.StreamChatMessages(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, nil,
		func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, "Hello", full)
	assert.Equal(t, []string{"He", "llo"}, chunks)

	// 固定采样参数与默认模型随请求发出
	assert.True(t, gotReq.Stream)
	assert.Equal(t, "deepseek-chat", gotReq.Model)
	assert.Equal(t, 0.7, gotReq.Temperature)
	assert.Equal(t, 0.9, gotReq.TopP)
	assert.Equal(t, 8000, gotReq.MaxTokens)
}

func TestStreamChatMessagesEOFWithoutDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"你好"}}]}` + "\n\n"))
		// 不发送 [DONE] 直接断开
	}))
	defer server.Close()

	full, err := NewClient(testConfig(server.URL)).StreamChatMessages(
		context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "你好", full)
}

func TestChatCompletionUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL)).ChatCompletion(
		context.Background(), []Message{{Role: "user", Content: "hi"}}, "")
	require.Error(t, err)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusTooManyRequests, upErr.StatusCode)
	assert.Contains(t, upErr.Body, "rate limited")
}

func TestRelayStreamVerbatim(t *testing.T) {
	raw := "data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n\ndata: [DONE]\n\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		_, _ = w.Write([]byte(raw))
	}))
	defer server.Close()

	var sb strings.Builder
	err := NewClient(testConfig(server.URL)).RelayStream(
		context.Background(), []Message{{Role: "user", Content: "hi"}}, "", &sb)
	require.NoError(t, err)

	// 字节级原样中继，不解析不改写
	assert.Equal(t, raw, sb.String())
}
