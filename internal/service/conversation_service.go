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

// conversationStateVersion 是 conversation-storage 命名空间当前的快照版本。
const conversationStateVersion = 1

// conversationState 只持久化会话列表；激活会话 ID 是瞬态的，重启后重置。
type conversationState struct {
	Conversations []model.Conversation `json:"conversations"`
}

// ErrConversationNotFound 表示目标会话不存在。
var ErrConversationNotFound = fmt.Errorf("conversation not found")

// ConversationService 定义了会话存储的操作接口。
//
// 它同时负责跨存储同步不变量：激活某个会话时，把该会话的报告推入排盘存储，
// 并清空遗留的全局消息列表——任一时刻只有一个消息来源是权威的。
// 两个协作方通过构造函数注入，不存在环境单例访问。
type ConversationService interface {
	ListConversations(ctx context.Context, userID uint) ([]model.Conversation, error)
	// CreateConversation 创建会话并设为激活。带报告时标题自动生成为
	// "公历时间 - 问题类型"；否则使用 title（空则为默认标题）。
	CreateConversation(ctx context.Context, userID uint, title string, report *model.QimenReport) (*model.Conversation, error)
	// DeleteConversation 删除会话。删除激活会话时，激活权转移给剩余的第一个会话，
	// 没有剩余会话则清空激活状态；删除非激活会话不影响激活 ID。
	DeleteConversation(ctx context.Context, userID uint, id string) error
	RenameConversation(ctx context.Context, userID uint, id, title string) error
	// SetActiveConversation 激活会话并执行跨存储同步。
	SetActiveConversation(ctx context.Context, userID uint, id string) error
	ActiveConversationID(userID uint) string
	// CurrentConversation 返回激活的会话，没有激活会话时返回 nil。
	CurrentConversation(ctx context.Context, userID uint) (*model.Conversation, error)
	GetConversation(ctx context.Context, userID uint, id string) (*model.Conversation, error)
	// AddMessage 向会话追加一条消息并抬升 updatedAt。
	AddMessage(ctx context.Context, userID uint, conversationID string, msg model.ChatMessage) error
	// AppendToMessage 把 chunk 追加到会话内某条消息的内容末尾（流式增量更新）。
	// 空 chunk 不改变任何内容；消息 ID 在整个过程中保持稳定。
	AppendToMessage(ctx context.Context, userID uint, conversationID, messageID, chunk string) error
	ClearAllConversations(ctx context.Context, userID uint) error
}

type conversationService struct {
	stateRepo  repository.StateRepository
	qimenSvc   QimenService
	messageSvc MessageService

	mu     sync.Mutex
	active map[uint]string
}

// NewConversationService 创建一个新的 ConversationService 实例。
func NewConversationService(stateRepo repository.StateRepository, qimenSvc QimenService, messageSvc MessageService) ConversationService {
	return &conversationService{
		stateRepo:  stateRepo,
		qimenSvc:   qimenSvc,
		messageSvc: messageSvc,
		active:     make(map[uint]string),
	}
}

func (s *conversationService) ListConversations(ctx context.Context, userID uint) ([]model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	return state.Conversations, nil
}

func (s *conversationService) CreateConversation(ctx context.Context, userID uint, title string, report *model.QimenReport) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	conversationTitle := title
	if report != nil {
		conversationTitle = fmt.Sprintf("%s - %s", report.Result.BasicInfo.Gongli, report.Input.QuestionType)
	} else if conversationTitle == "" {
		conversationTitle = "新对话"
	}

	now := time.Now().UnixMilli()
	conv := model.Conversation{
		ID:          uuid.NewString(),
		Title:       conversationTitle,
		QimenReport: report,
		Messages:    []model.ChatMessage{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// 新会话排在列表最前，并立即成为激活会话
	state.Conversations = append([]model.Conversation{conv}, state.Conversations...)
	if err := s.saveState(ctx, userID, state); err != nil {
		return nil, err
	}
	s.active[userID] = conv.ID
	return &conv, nil
}

func (s *conversationService) DeleteConversation(ctx context.Context, userID uint, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return err
	}

	kept := make([]model.Conversation, 0, len(state.Conversations))
	for _, c := range state.Conversations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	state.Conversations = kept

	if s.active[userID] == id {
		if len(kept) > 0 {
			s.active[userID] = kept[0].ID
		} else {
			delete(s.active, userID)
		}
	}
	return s.saveState(ctx, userID, state)
}

func (s *conversationService) RenameConversation(ctx context.Context, userID uint, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return err
	}
	conv := findConversation(state, id)
	if conv == nil {
		return ErrConversationNotFound
	}
	conv.Title = title
	touch(conv)
	return s.saveState(ctx, userID, state)
}

func (s *conversationService) SetActiveConversation(ctx context.Context, userID uint, id string) error {
	s.mu.Lock()
	state, err := s.loadState(ctx, userID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	conv := findConversation(state, id)
	if conv == nil {
		s.mu.Unlock()
		return ErrConversationNotFound
	}
	s.active[userID] = id
	report := conv.QimenReport
	s.mu.Unlock()

	// 跨存储同步：会话的报告成为当前报告，遗留全局消息列表让位
	s.qimenSvc.SetCurrentReport(userID, report)
	return s.messageSvc.ClearMessages(ctx, userID)
}

func (s *conversationService) ActiveConversationID(userID uint) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[userID]
}

func (s *conversationService) CurrentConversation(ctx context.Context, userID uint) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.active[userID]
	if id == "" {
		return nil, nil
	}
	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	return findConversation(state, id), nil
}

func (s *conversationService) GetConversation(ctx context.Context, userID uint, id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	return findConversation(state, id), nil
}

func (s *conversationService) AddMessage(ctx context.Context, userID uint, conversationID string, msg model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return err
	}
	conv := findConversation(state, conversationID)
	if conv == nil {
		return ErrConversationNotFound
	}
	conv.Messages = append(conv.Messages, msg)
	touch(conv)
	return s.saveState(ctx, userID, state)
}

func (s *conversationService) AppendToMessage(ctx context.Context, userID uint, conversationID, messageID, chunk string) error {
	if chunk == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return err
	}
	conv := findConversation(state, conversationID)
	if conv == nil {
		return ErrConversationNotFound
	}
	for i := range conv.Messages {
		if conv.Messages[i].ID == messageID {
			conv.Messages[i].Content += chunk
			touch(conv)
			return s.saveState(ctx, userID, state)
		}
	}
	return fmt.Errorf("message %s not found in conversation %s", messageID, conversationID)
}

func (s *conversationService) ClearAllConversations(ctx context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, userID)
	return s.saveState(ctx, userID, &conversationState{Conversations: []model.Conversation{}})
}

func findConversation(state *conversationState, id string) *model.Conversation {
	for i := range state.Conversations {
		if state.Conversations[i].ID == id {
			return &state.Conversations[i]
		}
	}
	return nil
}

// touch 抬升会话的 updatedAt，保证其单调非减。
func touch(conv *model.Conversation) {
	now := time.Now().UnixMilli()
	if now > conv.UpdatedAt {
		conv.UpdatedAt = now
	}
}

func (s *conversationService) loadState(ctx context.Context, userID uint) (*conversationState, error) {
	blob, err := s.stateRepo.Load(ctx, userID, repository.NamespaceConversation)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}
	if blob == nil {
		return &conversationState{}, nil
	}
	if blob.Version < conversationStateVersion {
		blob = migrateConversationState(blob)
	}
	var state conversationState
	if err := json.Unmarshal(blob.State, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation state: %w", err)
	}
	return &state, nil
}

func (s *conversationService) saveState(ctx context.Context, userID uint, state *conversationState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation state: %w", err)
	}
	return s.stateRepo.Save(ctx, userID, repository.NamespaceConversation,
		&repository.StateBlob{Version: conversationStateVersion, State: raw})
}

// migrateConversationState 把旧版本快照升级到当前版本。
// v0 的快照曾把激活会话 ID 一并持久化；升级时丢弃该字段，只保留会话列表。
func migrateConversationState(blob *repository.StateBlob) *repository.StateBlob {
	var legacy struct {
		Conversations []model.Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(blob.State, &legacy); err != nil {
		return &repository.StateBlob{Version: conversationStateVersion, State: blob.State}
	}
	raw, err := json.Marshal(conversationState{Conversations: legacy.Conversations})
	if err != nil {
		return &repository.StateBlob{Version: conversationStateVersion, State: blob.State}
	}
	return &repository.StateBlob{Version: conversationStateVersion, State: raw}
}
