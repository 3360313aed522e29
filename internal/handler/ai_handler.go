package handler

import (
	"errors"
	"net/http"

	"qimen-smart-go/pkg/llm"
	"qimen-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AIHandler 负责 OpenAI 兼容聊天补全的代理请求。
type AIHandler struct {
	llmClient llm.Client
}

// NewAIHandler 创建一个新的 AIHandler 实例。
func NewAIHandler(llmClient llm.Client) *AIHandler {
	return &AIHandler{llmClient: llmClient}
}

// ChatProxyRequest 定义了聊天代理 API 的请求体结构。
type ChatProxyRequest struct {
	Messages []llm.Message `json:"messages" binding:"required"`
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
}

// Chat 把聊天补全请求代理到上游。
// stream=true 时把上游 SSE 字节流原样中继给客户端。
func (h *AIHandler) Chat(c *gin.Context) {
	// 凭证缺失时不发起任何出站调用
	if !h.llmClient.Configured() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "OpenAI API key not configured"})
		return
	}

	var req ChatProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Chat: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：messages 不能为空"})
		return
	}

	if !req.Stream {
		body, err := h.llmClient.ChatCompletion(c.Request.Context(), req.Messages, req.Model)
		if err != nil {
			h.replyUpstreamError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	if err := h.llmClient.RelayStream(c.Request.Context(), req.Messages, req.Model, c.Writer); err != nil {
		// 响应头已经写出时只能记日志后断开
		if c.Writer.Written() {
			log.Errorf("Chat: 流式中继中断: %v", err)
			return
		}
		c.Header("Content-Type", "application/json; charset=utf-8")
		h.replyUpstreamError(c, err)
	}
}

// replyUpstreamError 把上游的非 2xx 响应转成错误信封，其余错误归为 500。
func (h *AIHandler) replyUpstreamError(c *gin.Context, err error) {
	var upErr *llm.UpstreamError
	if errors.As(err, &upErr) {
		log.Warnf("Chat: 上游返回非 2xx 状态 [%d]", upErr.StatusCode)
		c.JSON(upErr.StatusCode, gin.H{
			"error":   "AI 请求失败",
			"details": upErr.Body,
		})
		return
	}
	log.Errorf("Chat: 调用 AI 服务失败: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "AI 服务暂时不可用，请稍后重试"})
}
