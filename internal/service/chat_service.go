package service

import (
	"context"
	"fmt"
	"time"

	"qimen-smart-go/internal/model"
	"qimen-smart-go/internal/qimen"
	"qimen-smart-go/pkg/llm"
	"qimen-smart-go/pkg/log"

	"github.com/google/uuid"
)

// historyWindow 限定带入上下文的历史消息条数。
const historyWindow = 10

// streamErrorNotice 在流式回复中断时追加到回复末尾，对用户可见。
const streamErrorNotice = "\n\n[回复中断，请稍后重试]"

// ErrLLMNotConfigured 表示后端没有配置大模型凭证。
var ErrLLMNotConfigured = fmt.Errorf("OpenAI API key not configured")

// ChatService 负责会话内的 AI 问答流水线：
// 记录用户消息、拼装上下文、流式获取回复并逐段落盘。
type ChatService interface {
	// StreamReply 在指定会话中追加一条用户消息并流式生成回复。
	// 每收到一段增量内容即调用 onDelta 并追加到落盘的助手消息上。
	// 返回创建的助手消息 ID 与最终完整回复。
	StreamReply(ctx context.Context, userID uint, conversationID, question string, onDelta func(chunk string) error) (string, string, error)
}

type chatService struct {
	llmClient llm.Client
	convSvc   ConversationService
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(llmClient llm.Client, convSvc ConversationService) ChatService {
	return &chatService{llmClient: llmClient, convSvc: convSvc}
}

func (s *chatService) StreamReply(ctx context.Context, userID uint, conversationID, question string, onDelta func(chunk string) error) (string, string, error) {
	if !s.llmClient.Configured() {
		return "", "", ErrLLMNotConfigured
	}

	conv, err := s.convSvc.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return "", "", err
	}
	if conv == nil {
		return "", "", ErrConversationNotFound
	}

	userMsg := model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      model.RoleUser,
		Content:   question,
		Timestamp: time.Now().UnixMilli(),
		Type:      model.MessageTypeText,
	}
	if err := s.convSvc.AddMessage(ctx, userID, conversationID, userMsg); err != nil {
		return "", "", err
	}

	messages := buildContext(conv, question)

	// 先落一条空的助手消息，流式增量往上追加
	assistantMsg := model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      model.RoleAssistant,
		Content:   "",
		Timestamp: time.Now().UnixMilli(),
		Type:      model.MessageTypeText,
	}
	if err := s.convSvc.AddMessage(ctx, userID, conversationID, assistantMsg); err != nil {
		return "", "", err
	}

	full, streamErr := s.llmClient.StreamChatMessages(ctx, messages, nil, func(chunk string) error {
		if err := s.convSvc.AppendToMessage(ctx, userID, conversationID, assistantMsg.ID, chunk); err != nil {
			return err
		}
		return onDelta(chunk)
	})
	if streamErr != nil {
		// 已写入的部分回复保留，中断标记对用户可见
		log.Warnf("stream reply interrupted: conversation=%s err=%v", conversationID, streamErr)
		if appendErr := s.convSvc.AppendToMessage(ctx, userID, conversationID, assistantMsg.ID, streamErrorNotice); appendErr != nil {
			log.Errorf("failed to append stream error notice: %v", appendErr)
		}
		return assistantMsg.ID, full, streamErr
	}
	return assistantMsg.ID, full, nil
}

// buildContext 拼装发给大模型的消息列表：
// 系统提示词（附带会话绑定的排盘报告），最近 historyWindow 条历史，最后是本次提问。
func buildContext(conv *model.Conversation, question string) []llm.Message {
	system := qimen.SystemPrompt
	if conv.QimenReport != nil {
		system += "\n\n以下是本次问卜的排盘结果：\n\n" + qimen.FormatReport(conv.QimenReport)
	}

	history := make([]llm.Message, 0, historyWindow)
	for _, msg := range conv.Messages {
		if msg.Role == model.RoleSystem || msg.Content == "" {
			continue
		}
		history = append(history, llm.Message{Role: string(msg.Role), Content: msg.Content})
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: string(model.RoleSystem), Content: system})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: string(model.RoleUser), Content: question})
	return messages
}
