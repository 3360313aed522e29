package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"qimen-smart-go/internal/model"
	"qimen-smart-go/internal/repository"

	"github.com/google/uuid"
)

// chatStateVersion 是 chat-storage 命名空间当前的快照版本。
const chatStateVersion = 1

// chatState 是遗留的全局消息列表。没有激活会话时它是消息的权威来源；
// 一旦激活某个会话，它会被清空，消息以会话内列表为准。
type chatState struct {
	Messages []model.ChatMessage `json:"messages"`
}

// MessageService 定义了全局消息列表的操作接口。
type MessageService interface {
	ListMessages(ctx context.Context, userID uint) ([]model.ChatMessage, error)
	AddMessage(ctx context.Context, userID uint, role model.MessageRole, content string, msgType model.MessageType, reportID string) (*model.ChatMessage, error)
	// AppendToMessage 把 chunk 追加到指定消息的内容末尾，用于流式增量更新。
	// 空 chunk 不改变任何内容。
	AppendToMessage(ctx context.Context, userID uint, messageID, chunk string) error
	ClearMessages(ctx context.Context, userID uint) error
}

type messageService struct {
	stateRepo repository.StateRepository
	mu        sync.Mutex
}

// NewMessageService 创建一个新的 MessageService 实例。
func NewMessageService(stateRepo repository.StateRepository) MessageService {
	return &messageService{stateRepo: stateRepo}
}

func (s *messageService) ListMessages(ctx context.Context, userID uint) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	return state.Messages, nil
}

func (s *messageService) AddMessage(ctx context.Context, userID uint, role model.MessageRole, content string, msgType model.MessageType, reportID string) (*model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	msg := model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
		Type:      msgType,
		ReportID:  reportID,
	}
	state.Messages = append(state.Messages, msg)

	if err := s.saveState(ctx, userID, state); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *messageService) AppendToMessage(ctx context.Context, userID uint, messageID, chunk string) error {
	if chunk == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return err
	}
	for i := range state.Messages {
		if state.Messages[i].ID == messageID {
			state.Messages[i].Content += chunk
			return s.saveState(ctx, userID, state)
		}
	}
	return fmt.Errorf("message %s not found", messageID)
}

func (s *messageService) ClearMessages(ctx context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveState(ctx, userID, &chatState{})
}

func (s *messageService) loadState(ctx context.Context, userID uint) (*chatState, error) {
	blob, err := s.stateRepo.Load(ctx, userID, repository.NamespaceChat)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat state: %w", err)
	}
	if blob == nil {
		return &chatState{}, nil
	}
	var state chatState
	if err := json.Unmarshal(blob.State, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat state: %w", err)
	}
	return &state, nil
}

func (s *messageService) saveState(ctx context.Context, userID uint, state *chatState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal chat state: %w", err)
	}
	return s.stateRepo.Save(ctx, userID, repository.NamespaceChat,
		&repository.StateBlob{Version: chatStateVersion, State: raw})
}
