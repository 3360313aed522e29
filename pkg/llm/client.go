// Package llm 提供了一个 OpenAI 兼容聊天补全 API 的客户端。
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"qimen-smart-go/internal/config"
)

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为，nil 字段回退到配置中的固定采样参数。
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// UpstreamError 携带上游返回的非 2xx 状态码与响应体，供调用方原样上报。
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("chat api returned non-2xx status %d: %s", e.StatusCode, e.Body)
}

// Client 定义了聊天补全客户端的接口。
type Client interface {
	// Configured 报告凭证是否已配置；未配置时任何调用都不应发起出站请求。
	Configured() bool
	// ChatCompletion 发起非流式补全，返回上游的原始 JSON 响应体。
	ChatCompletion(ctx context.Context, messages []Message, model string) ([]byte, error)
	// RelayStream 发起流式补全并把上游 SSE 字节流原样写入 w，不做缓冲或转换。
	// w 实现 http.Flusher 时每写一块即刷出。随 ctx 取消而中止。
	RelayStream(ctx context.Context, messages []Message, model string, w io.Writer) error
	// StreamChatMessages 发起流式补全并逐块解析 delta 内容回调 onDelta，
	// 返回拼接后的完整回复文本。
	StreamChatMessages(ctx context.Context, messages []Message, gen *GenerationParams, onDelta func(chunk string) error) (string, error)
}

type openAIClient struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

// NewClient 创建一个 OpenAI 兼容的聊天客户端实例。
func NewClient(cfg config.OpenAIConfig) Client {
	return &openAIClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *openAIClient) Configured() bool {
	return c.cfg.APIKey != ""
}

func (c *openAIClient) buildRequest(messages []Message, model string, stream bool, gen *GenerationParams) chatRequest {
	req := chatRequest{
		Model:       model,
		Messages:    messages,
		Stream:      stream,
		Temperature: c.cfg.Generation.Temperature,
		TopP:        c.cfg.Generation.TopP,
		MaxTokens:   c.cfg.Generation.MaxTokens,
	}
	if req.Model == "" {
		req.Model = c.cfg.Model
	}
	if gen != nil {
		if gen.Temperature != nil {
			req.Temperature = *gen.Temperature
		}
		if gen.TopP != nil {
			req.TopP = *gen.TopP
		}
		if gen.MaxTokens != nil {
			req.MaxTokens = *gen.MaxTokens
		}
	}
	return req
}

// do 发送补全请求并返回响应，非 2xx 转换为 *UpstreamError。
func (c *openAIClient) do(ctx context.Context, reqBody chatRequest, accept string) (*http.Response, error) {
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}
	return resp, nil
}

func (c *openAIClient) ChatCompletion(ctx context.Context, messages []Message, model string) ([]byte, error) {
	resp, err := c.do(ctx, c.buildRequest(messages, model, false, nil), "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat response: %w", err)
	}
	return body, nil
}

func (c *openAIClient) RelayStream(ctx context.Context, messages []Message, model string, w io.Writer) error {
	resp, err := c.do(ctx, c.buildRequest(messages, model, true, nil), "text/event-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("failed to relay stream: %w", writeErr)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read from stream: %w", readErr)
		}
	}
}

func (c *openAIClient) StreamChatMessages(ctx context.Context, messages []Message, gen *GenerationParams, onDelta func(chunk string) error) (string, error) {
	resp, err := c.do(ctx, c.buildRequest(messages, "", true, gen), "text/event-stream")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// 部分兼容实现不发送 [DONE]，EOF 视为正常结束
				break
			}
			return full.String(), fmt.Errorf("failed to read from stream: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if strings.TrimSpace(data) == "[DONE]" {
			break
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}

		full.WriteString(content)
		if onDelta != nil {
			if err := onDelta(content); err != nil {
				return full.String(), fmt.Errorf("failed to deliver chunk: %w", err)
			}
		}
	}
	return full.String(), nil
}
