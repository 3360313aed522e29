// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"qimen-smart-go/internal/model"
	"qimen-smart-go/internal/qimen"
	"qimen-smart-go/internal/repository"
	"qimen-smart-go/pkg/log"
	"qimen-smart-go/pkg/qimenapi"

	"github.com/google/uuid"
)

// 报告历史的容量上限，超出时最旧的报告先被淘汰。
const maxReportHistory = 50

// qimenStateVersion 是 qimen-storage 命名空间当前的快照版本。
const qimenStateVersion = 1

// qimenState 是持久化到 qimen-storage 命名空间的状态本体。
// 当前报告是瞬态的，不参与持久化。
type qimenState struct {
	Reports []model.QimenReport `json:"reports"`
}

// QimenService 定义了排盘报告存储的操作接口。
type QimenService interface {
	// Calculate 执行一次排盘：优先调用上游 API，任何失败都回退到模拟数据。
	// 报告不进入历史，由调用方决定归属。
	Calculate(ctx context.Context, input model.QimenInput) *model.QimenReport
	// GenerateReport 排盘并把报告写入用户的历史（保留最近 50 份），同时设为当前报告。
	GenerateReport(ctx context.Context, userID uint, input model.QimenInput) (*model.QimenReport, error)
	ListReports(ctx context.Context, userID uint) ([]model.QimenReport, error)
	GetReportByID(ctx context.Context, userID uint, id string) (*model.QimenReport, error)
	DeleteReport(ctx context.Context, userID uint, id string) error
	// CurrentReport 返回用户当前选中的报告，可能为 nil。瞬态,不随进程重启保留。
	CurrentReport(userID uint) *model.QimenReport
	SetCurrentReport(userID uint, report *model.QimenReport)
}

type qimenService struct {
	apiClient qimenapi.Client
	stateRepo repository.StateRepository

	mu      sync.Mutex
	current map[uint]*model.QimenReport
}

// NewQimenService 创建一个新的 QimenService 实例。
func NewQimenService(apiClient qimenapi.Client, stateRepo repository.StateRepository) QimenService {
	return &qimenService{
		apiClient: apiClient,
		stateRepo: stateRepo,
		current:   make(map[uint]*model.QimenReport),
	}
}

func (s *qimenService) Calculate(ctx context.Context, input model.QimenInput) *model.QimenReport {
	result := s.calculateResult(ctx, input)
	return &model.QimenReport{
		ID:        uuid.NewString(),
		Input:     input,
		Result:    *result,
		Timestamp: time.Now().UnixMilli(),
	}
}

// calculateResult 调用上游并归一化，失败时退回模拟结果而不是向上抛错。
func (s *qimenService) calculateResult(ctx context.Context, input model.QimenInput) *model.QimenResult {
	apiResp, err := s.apiClient.Paipan(ctx, input)
	if err != nil {
		log.Warnf("排盘 API 调用失败，回退到模拟数据: %v", err)
		return qimen.MockResult(input)
	}
	result, err := qimen.Normalize(apiResp.Data)
	if err != nil {
		log.Warnf("排盘响应归一化失败，回退到模拟数据: %v", err)
		return qimen.MockResult(input)
	}
	return result
}

func (s *qimenService) GenerateReport(ctx context.Context, userID uint, input model.QimenInput) (*model.QimenReport, error) {
	report := s.Calculate(ctx, input)

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 新报告排在最前；历史超过上限时淘汰最旧的
	state.Reports = append([]model.QimenReport{*report}, state.Reports...)
	if len(state.Reports) > maxReportHistory {
		state.Reports = state.Reports[:maxReportHistory]
	}

	if err := s.saveState(ctx, userID, state); err != nil {
		return nil, err
	}
	s.current[userID] = report
	return report, nil
}

func (s *qimenService) ListReports(ctx context.Context, userID uint) ([]model.QimenReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	return state.Reports, nil
}

func (s *qimenService) GetReportByID(ctx context.Context, userID uint, id string) (*model.QimenReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range state.Reports {
		if state.Reports[i].ID == id {
			return &state.Reports[i], nil
		}
	}
	return nil, nil
}

func (s *qimenService) DeleteReport(ctx context.Context, userID uint, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return err
	}
	kept := state.Reports[:0]
	for _, r := range state.Reports {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	state.Reports = kept

	if cur := s.current[userID]; cur != nil && cur.ID == id {
		delete(s.current, userID)
	}
	return s.saveState(ctx, userID, state)
}

func (s *qimenService) CurrentReport(userID uint) *model.QimenReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current[userID]
}

func (s *qimenService) SetCurrentReport(userID uint, report *model.QimenReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if report == nil {
		delete(s.current, userID)
		return
	}
	s.current[userID] = report
}

// loadState 读取并在必要时迁移 qimen-storage 快照。调用方必须持有 s.mu。
func (s *qimenService) loadState(ctx context.Context, userID uint) (*qimenState, error) {
	blob, err := s.stateRepo.Load(ctx, userID, repository.NamespaceQimen)
	if err != nil {
		return nil, fmt.Errorf("failed to load qimen state: %w", err)
	}
	if blob == nil {
		return &qimenState{}, nil
	}
	if blob.Version < qimenStateVersion {
		blob = migrateQimenState(blob)
	}
	var state qimenState
	if err := json.Unmarshal(blob.State, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal qimen state: %w", err)
	}
	return &state, nil
}

func (s *qimenService) saveState(ctx context.Context, userID uint, state *qimenState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal qimen state: %w", err)
	}
	return s.stateRepo.Save(ctx, userID, repository.NamespaceQimen,
		&repository.StateBlob{Version: qimenStateVersion, State: raw})
}

// migrateQimenState 把旧版本快照升级到当前版本。
// v0 与 v1 的报告结构相同，仅提升版本号。
func migrateQimenState(blob *repository.StateBlob) *repository.StateBlob {
	return &repository.StateBlob{Version: qimenStateVersion, State: blob.State}
}
