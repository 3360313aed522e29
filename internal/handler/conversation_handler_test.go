package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"qimen-smart-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// fakeChatService 回放固定的 chunk 序列。
type fakeChatService struct {
	chunks []string
	err    error
}

func (f *fakeChatService) StreamReply(_ context.Context, _ uint, _, _ string, onDelta func(string) error) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	var full string
	for _, chunk := range f.chunks {
		full += chunk
		if err := onDelta(chunk); err != nil {
			return "", full, err
		}
	}
	return "msg-1", full, nil
}

func newChatSSERouter(chatSvc service.ChatService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewConversationHandler(nil, chatSvc)
	r.POST("/api/v1/conversations/:id/chat", h.Chat)
	return r
}

func postChat(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/c1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestConversationChatSSEFrames(t *testing.T) {
	r := newChatSSERouter(&fakeChatService{chunks: []string{"He", "llo"}})

	w := postChat(r, `{"question":"今日运势？"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	// 增量帧按序出现，最后是 done 帧
	assert.Contains(t, body, `data: {"type":"delta","content":"He"}`)
	assert.Contains(t, body, `data: {"type":"delta","content":"llo"}`)
	assert.Contains(t, body, `data: {"type":"done"}`)
	assert.Less(t, strings.Index(body, `"He"`), strings.Index(body, `"llo"`))
}

func TestConversationChatNotFound(t *testing.T) {
	r := newChatSSERouter(&fakeChatService{err: service.ErrConversationNotFound})

	w := postChat(r, `{"question":"hi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversationChatNotConfigured(t *testing.T) {
	r := newChatSSERouter(&fakeChatService{err: service.ErrLLMNotConfigured})

	w := postChat(r, `{"question":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "OpenAI API key not configured")
}

func TestConversationChatStreamError(t *testing.T) {
	// 凭证检查通过后才发生的错误以 error 帧下发
	r := newChatSSERouter(&fakeChatService{err: assert.AnError})

	w := postChat(r, `{"question":"hi"}`)
	assert.Contains(t, w.Body.String(), `data: {"type":"error"`)
}

func TestConversationChatMissingQuestion(t *testing.T) {
	r := newChatSSERouter(&fakeChatService{})

	w := postChat(r, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
