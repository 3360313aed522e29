package model

// MessageRole 消息角色。
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// MessageType 消息种类：普通文本或排盘报告卡片。
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeReport MessageType = "report"
)

// ChatMessage 代表会话中的一条消息。
// ID 在所属列表内唯一，流式追加内容时保持不变。
type ChatMessage struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp"` // Unix 毫秒
	Type      MessageType `json:"type,omitempty"`
	ReportID  string      `json:"reportId,omitempty"`
}

// Conversation 代表一次完整的对话，消息只追加不重排。
type Conversation struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	QimenReport *QimenReport  `json:"qimenReport,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	CreatedAt   int64         `json:"createdAt"`
	UpdatedAt   int64         `json:"updatedAt"` // 单调非减，每次变更时抬升
}
