package handler

import (
	"net/http"

	"qimen-smart-go/internal/middleware"
	"qimen-smart-go/internal/model"
	"qimen-smart-go/internal/service"
	"qimen-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// MessageHandler 负责全局消息列表的 API 请求。
// 这是独立于会话的旧消息通道，切换活跃会话时会被清空。
type MessageHandler struct {
	messageService service.MessageService
}

// NewMessageHandler 创建一个新的 MessageHandler 实例。
func NewMessageHandler(messageService service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// List 返回全局消息列表。
func (h *MessageHandler) List(c *gin.Context) {
	messages, err := h.messageService.ListMessages(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		log.Errorf("ListMessages: 读取消息列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取消息列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": messages, "message": "success"})
}

// AddMessageRequest 定义了追加消息 API 的请求体结构。
type AddMessageRequest struct {
	Role     model.MessageRole `json:"role" binding:"required"`
	Content  string            `json:"content"`
	Type     model.MessageType `json:"type"`
	ReportID string            `json:"reportId"`
}

// Add 在全局消息列表末尾追加一条消息。
func (h *MessageHandler) Add(c *gin.Context) {
	var req AddMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：role 不能为空"})
		return
	}

	msg, err := h.messageService.AddMessage(c.Request.Context(), middleware.UserID(c), req.Role, req.Content, req.Type, req.ReportID)
	if err != nil {
		log.Errorf("AddMessage: 追加消息失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "追加消息失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": msg, "message": "success"})
}

// AppendRequest 定义了增量追加消息内容 API 的请求体结构。
type AppendRequest struct {
	Chunk string `json:"chunk"`
}

// Append 把一段增量内容追加到指定消息的末尾。
func (h *MessageHandler) Append(c *gin.Context) {
	var req AppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	err := h.messageService.AppendToMessage(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Chunk)
	if err != nil {
		log.Warnf("AppendToMessage: 增量追加失败: %v", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "消息不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success"})
}

// Clear 清空全局消息列表。
func (h *MessageHandler) Clear(c *gin.Context) {
	if err := h.messageService.ClearMessages(c.Request.Context(), middleware.UserID(c)); err != nil {
		log.Errorf("ClearMessages: 清空消息失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "清空消息失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success"})
}
