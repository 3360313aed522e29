// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// 每个状态存储使用独立的命名空间，互不干扰地序列化到自己的键下。
const (
	NamespaceConversation = "conversation-storage"
	NamespaceChat         = "chat-storage"
	NamespaceQimen        = "qimen-storage"
	NamespaceUser         = "user-storage"
	NamespaceTheme        = "theme-storage"
)

// StateBlob 是持久化状态的统一包装：整数版本号 + 状态本体。
// 版本号用于加载时执行一次性迁移。
type StateBlob struct {
	Version int             `json:"version"`
	State   json.RawMessage `json:"state"`
}

// StateRepository 定义了按用户、按命名空间存取状态快照的接口。
// 每次写入覆盖整个快照（last write wins），不提供更细粒度的刷新保证。
type StateRepository interface {
	// Load 读取一个命名空间的快照，不存在时返回 (nil, nil)。
	Load(ctx context.Context, userID uint, namespace string) (*StateBlob, error)
	// Save 覆盖写入一个命名空间的快照。
	Save(ctx context.Context, userID uint, namespace string, blob *StateBlob) error
}

type redisStateRepository struct {
	redisClient *redis.Client
}

// NewStateRepository 创建一个基于 Redis 的 StateRepository 实例。
func NewStateRepository(redisClient *redis.Client) StateRepository {
	return &redisStateRepository{redisClient: redisClient}
}

func stateKey(userID uint, namespace string) string {
	return fmt.Sprintf("user:%d:%s", userID, namespace)
}

func (r *redisStateRepository) Load(ctx context.Context, userID uint, namespace string) (*StateBlob, error) {
	jsonData, err := r.redisClient.Get(ctx, stateKey(userID, namespace)).Result()
	if err == redis.Nil {
		return nil, nil // 尚无快照
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state blob: %w", err)
	}
	var blob StateBlob
	if err := json.Unmarshal([]byte(jsonData), &blob); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state blob: %w", err)
	}
	return &blob, nil
}

func (r *redisStateRepository) Save(ctx context.Context, userID uint, namespace string, blob *StateBlob) error {
	jsonData, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("failed to marshal state blob: %w", err)
	}
	if err := r.redisClient.Set(ctx, stateKey(userID, namespace), jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to set state blob: %w", err)
	}
	return nil
}

// memoryStateRepository 是 StateRepository 的内存实现，用于测试和本地开发。
type memoryStateRepository struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStateRepository 创建一个内存态的 StateRepository 实例。
func NewMemoryStateRepository() StateRepository {
	return &memoryStateRepository{blobs: make(map[string][]byte)}
}

func (r *memoryStateRepository) Load(_ context.Context, userID uint, namespace string) (*StateBlob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jsonData, ok := r.blobs[stateKey(userID, namespace)]
	if !ok {
		return nil, nil
	}
	var blob StateBlob
	if err := json.Unmarshal(jsonData, &blob); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state blob: %w", err)
	}
	return &blob, nil
}

func (r *memoryStateRepository) Save(_ context.Context, userID uint, namespace string, blob *StateBlob) error {
	jsonData, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("failed to marshal state blob: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[stateKey(userID, namespace)] = jsonData
	return nil
}
