package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"qimen-smart-go/internal/middleware"
	"qimen-smart-go/internal/model"
	"qimen-smart-go/internal/service"
	"qimen-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// sseChatFrame 是会话内流式问答的 SSE 帧。
type sseChatFrame struct {
	Type    string `json:"type"` // delta | done | error
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// writeSSEJSON 把一个 JSON 帧按 SSE 格式写出并立即刷出。
func writeSSEJSON(c *gin.Context, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = c.Writer.WriteString("data: " + string(b) + "\n\n")
	c.Writer.Flush()
}

// ConversationHandler 负责会话管理与会话内流式问答的 API 请求。
type ConversationHandler struct {
	convService service.ConversationService
	chatService service.ChatService
}

// NewConversationHandler 创建一个新的 ConversationHandler 实例。
func NewConversationHandler(convService service.ConversationService, chatService service.ChatService) *ConversationHandler {
	return &ConversationHandler{convService: convService, chatService: chatService}
}

// CreateConversationRequest 定义了创建会话 API 的请求体结构。
type CreateConversationRequest struct {
	Title  string             `json:"title"`
	Report *model.QimenReport `json:"report"`
}

// Create 创建一个新会话并将其设为活跃会话。
func (h *ConversationHandler) Create(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("CreateConversation: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	conv, err := h.convService.CreateConversation(c.Request.Context(), middleware.UserID(c), req.Title, req.Report)
	if err != nil {
		log.Errorf("CreateConversation: 创建会话失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": conv, "message": "success"})
}

// List 返回当前用户的全部会话，最新的在前。
func (h *ConversationHandler) List(c *gin.Context) {
	convs, err := h.convService.ListConversations(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		log.Errorf("ListConversations: 读取会话列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取会话列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"data":    gin.H{"conversations": convs, "activeId": h.convService.ActiveConversationID(middleware.UserID(c))},
		"message": "success",
	})
}

// Get 按 ID 返回一个会话。
func (h *ConversationHandler) Get(c *gin.Context) {
	conv, err := h.convService.GetConversation(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		log.Errorf("GetConversation: 读取会话失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取会话失败"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": conv, "message": "success"})
}

// Delete 删除一个会话，活跃会话被删除时自动切换到剩余的第一个。
func (h *ConversationHandler) Delete(c *gin.Context) {
	if err := h.convService.DeleteConversation(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		log.Errorf("DeleteConversation: 删除会话失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success"})
}

// RenameRequest 定义了重命名会话 API 的请求体结构。
type RenameRequest struct {
	Title string `json:"title" binding:"required"`
}

// Rename 重命名一个会话。
func (h *ConversationHandler) Rename(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：标题不能为空"})
		return
	}

	err := h.convService.RenameConversation(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Title)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
			return
		}
		log.Errorf("RenameConversation: 重命名会话失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "重命名会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success"})
}

// SetActive 切换活跃会话，同时把该会话的报告同步到排盘存储。
func (h *ConversationHandler) SetActive(c *gin.Context) {
	err := h.convService.SetActiveConversation(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
			return
		}
		log.Errorf("SetActiveConversation: 切换活跃会话失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "切换活跃会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success"})
}

// ClearAll 清空当前用户的所有会话。
func (h *ConversationHandler) ClearAll(c *gin.Context) {
	if err := h.convService.ClearAllConversations(c.Request.Context(), middleware.UserID(c)); err != nil {
		log.Errorf("ClearAllConversations: 清空会话失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "清空会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success"})
}

// ChatRequest 定义了会话内提问 API 的请求体结构。
type ChatRequest struct {
	Question string `json:"question" binding:"required"`
}

// Chat 在指定会话中发起一轮流式问答。
// 回复以 SSE 帧下发：{type:delta} 逐段内容，{type:done} 正常结束，{type:error} 中断。
func (h *ConversationHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：question 不能为空"})
		return
	}

	userID := middleware.UserID(c)
	conversationID := c.Param("id")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	_, _, err := h.chatService.StreamReply(c.Request.Context(), userID, conversationID, req.Question,
		func(chunk string) error {
			writeSSEJSON(c, sseChatFrame{Type: "delta", Content: chunk})
			return nil
		})
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) && !c.Writer.Written() {
			c.Header("Content-Type", "application/json; charset=utf-8")
			c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
			return
		}
		if errors.Is(err, service.ErrLLMNotConfigured) && !c.Writer.Written() {
			c.Header("Content-Type", "application/json; charset=utf-8")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "OpenAI API key not configured"})
			return
		}
		log.Errorf("ConversationChat: 流式问答失败: %v", err)
		writeSSEJSON(c, sseChatFrame{Type: "error", Message: "AI 服务暂时不可用，请稍后重试"})
		return
	}

	writeSSEJSON(c, sseChatFrame{Type: "done"})
}
