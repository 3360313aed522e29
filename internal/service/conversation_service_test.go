package service

import (
	"context"
	"errors"
	"testing"

	"qimen-smart-go/internal/model"
	"qimen-smart-go/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversationFixture() (ConversationService, QimenService, MessageService) {
	stateRepo := repository.NewMemoryStateRepository()
	qimenSvc := NewQimenService(&fakeQimenClient{err: errors.New("upstream down")}, stateRepo)
	messageSvc := NewMessageService(stateRepo)
	return NewConversationService(stateRepo, qimenSvc, messageSvc), qimenSvc, messageSvc
}

func sampleReport() *model.QimenReport {
	return &model.QimenReport{
		ID:    "report-1",
		Input: model.QimenInput{Year: 2024, Month: 1, Day: 1, QuestionType: "career"},
		Result: model.QimenResult{
			BasicInfo: model.QimenBasicInfo{Gongli: "2024-01-01 12:00"},
		},
	}
}

func TestCreateConversationAutoTitle(t *testing.T) {
	svc, _, _ := newConversationFixture()
	ctx := context.Background()

	// 带报告时标题自动生成，忽略传入的 title
	conv, err := svc.CreateConversation(ctx, 1, "自定义标题", sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 12:00 - career", conv.Title)
	assert.Equal(t, conv.ID, svc.ActiveConversationID(1))

	// 不带报告时使用传入标题
	conv2, err := svc.CreateConversation(ctx, 1, "聊聊运势", nil)
	require.NoError(t, err)
	assert.Equal(t, "聊聊运势", conv2.Title)

	// 标题也为空时使用默认标题
	conv3, err := svc.CreateConversation(ctx, 1, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "新对话", conv3.Title)

	// 新会话排在最前
	convs, err := svc.ListConversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, conv3.ID, convs[0].ID)
	assert.Equal(t, conv.ID, convs[2].ID)
}

func TestAppendToMessageIncremental(t *testing.T) {
	svc, _, _ := newConversationFixture()
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, 1, "", nil)
	require.NoError(t, err)

	msg := model.ChatMessage{ID: "msg-1", Role: model.RoleAssistant, Content: ""}
	require.NoError(t, svc.AddMessage(ctx, 1, conv.ID, msg))

	// 分片按序追加
	require.NoError(t, svc.AppendToMessage(ctx, 1, conv.ID, "msg-1", "A"))
	require.NoError(t, svc.AppendToMessage(ctx, 1, conv.ID, "msg-1", "B"))
	// 空 chunk 不改变任何内容
	require.NoError(t, svc.AppendToMessage(ctx, 1, conv.ID, "msg-1", ""))

	got, err := svc.GetConversation(ctx, 1, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "AB", got.Messages[0].Content)
	assert.Equal(t, "msg-1", got.Messages[0].ID)

	// 目标消息不存在时报错
	assert.Error(t, svc.AppendToMessage(ctx, 1, conv.ID, "missing", "X"))
}

func TestDeleteConversationReassignsActive(t *testing.T) {
	svc, _, _ := newConversationFixture()
	ctx := context.Background()

	first, err := svc.CreateConversation(ctx, 1, "第一个", nil)
	require.NoError(t, err)
	second, err := svc.CreateConversation(ctx, 1, "第二个", nil)
	require.NoError(t, err)
	require.Equal(t, second.ID, svc.ActiveConversationID(1))

	// 删除激活会话，激活权转移给剩余的第一个
	require.NoError(t, svc.DeleteConversation(ctx, 1, second.ID))
	assert.Equal(t, first.ID, svc.ActiveConversationID(1))

	// 删除最后一个会话后无激活会话
	require.NoError(t, svc.DeleteConversation(ctx, 1, first.ID))
	assert.Equal(t, "", svc.ActiveConversationID(1))

	conv, err := svc.CurrentConversation(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestDeleteInactiveConversationKeepsActive(t *testing.T) {
	svc, _, _ := newConversationFixture()
	ctx := context.Background()

	first, err := svc.CreateConversation(ctx, 1, "第一个", nil)
	require.NoError(t, err)
	second, err := svc.CreateConversation(ctx, 1, "第二个", nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteConversation(ctx, 1, first.ID))
	assert.Equal(t, second.ID, svc.ActiveConversationID(1))
}

func TestSetActiveConversationSyncsStores(t *testing.T) {
	svc, qimenSvc, messageSvc := newConversationFixture()
	ctx := context.Background()

	withReport, err := svc.CreateConversation(ctx, 1, "", sampleReport())
	require.NoError(t, err)
	withoutReport, err := svc.CreateConversation(ctx, 1, "无报告", nil)
	require.NoError(t, err)

	// 遗留消息列表里先放一条消息
	_, err = messageSvc.AddMessage(ctx, 1, model.RoleUser, "旧消息", model.MessageTypeText, "")
	require.NoError(t, err)

	// 激活带报告的会话：报告进入排盘存储，遗留消息被清空
	require.NoError(t, svc.SetActiveConversation(ctx, 1, withReport.ID))
	require.NotNil(t, qimenSvc.CurrentReport(1))
	assert.Equal(t, "report-1", qimenSvc.CurrentReport(1).ID)

	messages, err := messageSvc.ListMessages(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, messages)

	// 激活无报告的会话：当前报告被清空
	require.NoError(t, svc.SetActiveConversation(ctx, 1, withoutReport.ID))
	assert.Nil(t, qimenSvc.CurrentReport(1))

	// 激活不存在的会话
	assert.ErrorIs(t, svc.SetActiveConversation(ctx, 1, "missing"), ErrConversationNotFound)
}

func TestActiveConversationTransient(t *testing.T) {
	stateRepo := repository.NewMemoryStateRepository()
	qimenSvc := NewQimenService(&fakeQimenClient{err: errors.New("down")}, stateRepo)
	messageSvc := NewMessageService(stateRepo)
	svc := NewConversationService(stateRepo, qimenSvc, messageSvc)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, 1, "持久化测试", nil)
	require.NoError(t, err)
	require.Equal(t, conv.ID, svc.ActiveConversationID(1))

	// 同一存储上的新实例：会话仍在，激活 ID 不随状态持久化
	restarted := NewConversationService(stateRepo, qimenSvc, messageSvc)
	convs, err := restarted.ListConversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "持久化测试", convs[0].Title)
	assert.Equal(t, "", restarted.ActiveConversationID(1))
}

func TestRenameAndClearAll(t *testing.T) {
	svc, _, _ := newConversationFixture()
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, 1, "旧标题", nil)
	require.NoError(t, err)

	require.NoError(t, svc.RenameConversation(ctx, 1, conv.ID, "新标题"))
	got, err := svc.GetConversation(ctx, 1, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "新标题", got.Title)

	assert.ErrorIs(t, svc.RenameConversation(ctx, 1, "missing", "x"), ErrConversationNotFound)

	require.NoError(t, svc.ClearAllConversations(ctx, 1))
	convs, err := svc.ListConversations(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, convs)
	assert.Equal(t, "", svc.ActiveConversationID(1))
}
