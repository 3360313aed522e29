package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"qimen-smart-go/internal/service"
	"qimen-smart-go/pkg/log"
	"qimen-smart-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// WSChatHandler 负责处理 WebSocket 聊天连接。
// 每条文本消息都是活跃会话中的一轮提问，回复以 {"chunk":...} 帧逐段下发。
type WSChatHandler struct {
	chatService service.ChatService
	convService service.ConversationService
	userService service.UserService
	jwtManager  *token.JWTManager
}

// NewWSChatHandler 创建一个新的 WSChatHandler。
func NewWSChatHandler(chatService service.ChatService, convService service.ConversationService, userService service.UserService, jwtManager *token.JWTManager) *WSChatHandler {
	return &WSChatHandler{
		chatService: chatService,
		convService: convService,
		userService: userService,
		jwtManager:  jwtManager,
	}
}

// wsSession 是一条 WebSocket 连接的发送端与流控制状态。
type wsSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc // 当前在途流的取消函数，无在途流时为 nil
}

func (s *wsSession) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

// stop 中断当前在途的流式回复（如果有）。
func (s *wsSession) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

func (s *wsSession) begin(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return ctx
}

func (s *wsSession) finish() {
	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
}

// Handle 处理一个传入的 WebSocket 连接。
// token 经 URL 路径传入，升级前先完成认证。
func (h *WSChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	user, err := h.userService.GetProfile(claims.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", claims.Username)

	session := &wsSession{conn: conn}
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			session.stop()
			break
		}

		// JSON 停止指令: {"type":"stop"}
		if len(message) > 0 && message[0] == '{' {
			var ctrl map[string]interface{}
			if err := json.Unmarshal(message, &ctrl); err == nil {
				if t, ok := ctrl["type"].(string); ok && t == "stop" {
					if session.stop() {
						_ = session.writeJSON(gin.H{
							"type":      "stop",
							"message":   "响应已停止",
							"timestamp": time.Now().UnixMilli(),
						})
					}
					continue
				}
			}
		}

		// 普通文本是活跃会话中的一轮提问，流式回复期间继续读下一条消息
		go h.streamTurn(c.Request.Context(), session, user.ID, string(message))
	}
}

// streamTurn 在活跃会话里执行一轮流式问答并把结果写回连接。
func (h *WSChatHandler) streamTurn(parent context.Context, session *wsSession, userID uint, question string) {
	activeID := h.convService.ActiveConversationID(userID)
	if activeID == "" {
		_ = session.writeJSON(gin.H{"error": "当前没有活跃会话，请先创建会话"})
		return
	}

	ctx := session.begin(parent)
	defer session.finish()

	_, _, err := h.chatService.StreamReply(ctx, userID, activeID, question, func(chunk string) error {
		return session.writeJSON(gin.H{"chunk": chunk})
	})
	if err != nil && ctx.Err() == nil {
		log.Errorf("处理流式响应失败: %v", err)
		_ = session.writeJSON(gin.H{"error": "AI服务暂时不可用，请稍后重试"})
	}

	// 无论成功与否都发送 completion 通知
	_ = session.writeJSON(gin.H{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
	})
}
