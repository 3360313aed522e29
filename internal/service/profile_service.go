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

// userStateVersion 是 user-storage 命名空间当前的快照版本。
// v1 只有命主档案；v2 增加了保存的他人档案列表。
const userStateVersion = 2

// userState 是持久化到 user-storage 命名空间的状态本体。
type userState struct {
	Profile       model.UserProfile     `json:"profile"`
	SavedProfiles []model.PersonProfile `json:"savedProfiles"`
}

// ErrProfileNotFound 表示目标档案不存在。
var ErrProfileNotFound = fmt.Errorf("profile not found")

// ErrNoBirthDate 表示档案未设置出生时间，无法排命盘。
var ErrNoBirthDate = fmt.Errorf("profile has no birth date")

// ProfileService 定义了命主档案与保存档案的操作接口。
type ProfileService interface {
	GetSelfProfile(ctx context.Context, userID uint) (*model.UserProfile, error)
	UpdateSelfProfile(ctx context.Context, userID uint, profile model.UserProfile) (*model.UserProfile, error)
	// GenerateSelfBirthChart 按固定参数为命主档案重排命盘并写回档案。
	GenerateSelfBirthChart(ctx context.Context, userID uint) (*model.QimenReport, error)
	ListSavedProfiles(ctx context.Context, userID uint) ([]model.PersonProfile, error)
	CreateSavedProfile(ctx context.Context, userID uint, profile model.PersonProfile) (*model.PersonProfile, error)
	UpdateSavedProfile(ctx context.Context, userID uint, profile model.PersonProfile) (*model.PersonProfile, error)
	DeleteSavedProfile(ctx context.Context, userID uint, id string) error
	// GenerateSavedBirthChart 为指定的保存档案重排命盘并写回。
	GenerateSavedBirthChart(ctx context.Context, userID uint, id string) (*model.QimenReport, error)
}

type profileService struct {
	stateRepo repository.StateRepository
	qimenSvc  QimenService
	mu        sync.Mutex
}

// NewProfileService 创建一个新的 ProfileService 实例。
func NewProfileService(stateRepo repository.StateRepository, qimenSvc QimenService) ProfileService {
	return &profileService{stateRepo: stateRepo, qimenSvc: qimenSvc}
}

func (s *profileService) GetSelfProfile(ctx context.Context, userID uint) (*model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &state.Profile, nil
}

func (s *profileService) UpdateSelfProfile(ctx context.Context, userID uint, profile model.UserProfile) (*model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	// 命盘只能通过 GenerateSelfBirthChart 更新
	profile.BirthChart = state.Profile.BirthChart
	state.Profile = profile

	if err := s.saveState(ctx, userID, state); err != nil {
		return nil, err
	}
	return &state.Profile, nil
}

func (s *profileService) GenerateSelfBirthChart(ctx context.Context, userID uint) (*model.QimenReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state.Profile.BirthDate == 0 {
		return nil, ErrNoBirthDate
	}

	report := s.qimenSvc.Calculate(ctx, birthChartInput(state.Profile.BirthDate, state.Profile.Gender))
	state.Profile.BirthChart = report

	if err := s.saveState(ctx, userID, state); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *profileService) ListSavedProfiles(ctx context.Context, userID uint) ([]model.PersonProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	return state.SavedProfiles, nil
}

func (s *profileService) CreateSavedProfile(ctx context.Context, userID uint, profile model.PersonProfile) (*model.PersonProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	profile.ID = uuid.NewString()
	profile.BirthChart = nil
	profile.CreatedAt = now
	profile.UpdatedAt = now
	state.SavedProfiles = append(state.SavedProfiles, profile)

	if err := s.saveState(ctx, userID, state); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *profileService) UpdateSavedProfile(ctx context.Context, userID uint, profile model.PersonProfile) (*model.PersonProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range state.SavedProfiles {
		if state.SavedProfiles[i].ID == profile.ID {
			existing := &state.SavedProfiles[i]
			existing.Name = profile.Name
			existing.Gender = profile.Gender
			existing.BirthDate = profile.BirthDate
			existing.Relationship = profile.Relationship
			existing.Notes = profile.Notes
			existing.UpdatedAt = time.Now().UnixMilli()
			if err := s.saveState(ctx, userID, state); err != nil {
				return nil, err
			}
			return existing, nil
		}
	}
	return nil, ErrProfileNotFound
}

func (s *profileService) DeleteSavedProfile(ctx context.Context, userID uint, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return err
	}
	kept := state.SavedProfiles[:0]
	for _, p := range state.SavedProfiles {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	state.SavedProfiles = kept
	return s.saveState(ctx, userID, state)
}

func (s *profileService) GenerateSavedBirthChart(ctx context.Context, userID uint, id string) (*model.QimenReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range state.SavedProfiles {
		if state.SavedProfiles[i].ID == id {
			p := &state.SavedProfiles[i]
			if p.BirthDate == 0 {
				return nil, ErrNoBirthDate
			}
			report := s.qimenSvc.Calculate(ctx, birthChartInput(p.BirthDate, p.Gender))
			p.BirthChart = report
			p.UpdatedAt = time.Now().UnixMilli()
			if err := s.saveState(ctx, userID, state); err != nil {
				return nil, err
			}
			return report, nil
		}
	}
	return nil, ErrProfileNotFound
}

// birthChartInput 为命盘排盘构造固定参数输入：拆补法起局、转盘奇门、不考虑真太阳时。
func birthChartInput(birthDate int64, gender string) model.QimenInput {
	t := time.UnixMilli(birthDate)
	return model.QimenInput{
		Year:         t.Year(),
		Month:        int(t.Month()),
		Day:          t.Day(),
		Hours:        t.Hour(),
		Minute:       t.Minute(),
		Gender:       gender,
		QuestionType: "命盘",
		JuModel:      0,
		PanModel:     1,
		Zhen:         2,
	}
}

func (s *profileService) loadState(ctx context.Context, userID uint) (*userState, error) {
	blob, err := s.stateRepo.Load(ctx, userID, repository.NamespaceUser)
	if err != nil {
		return nil, fmt.Errorf("failed to load user state: %w", err)
	}
	if blob == nil {
		return defaultUserState(), nil
	}
	if blob.Version < userStateVersion {
		blob = migrateUserState(blob)
	}
	var state userState
	if err := json.Unmarshal(blob.State, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user state: %w", err)
	}
	if state.SavedProfiles == nil {
		state.SavedProfiles = []model.PersonProfile{}
	}
	return &state, nil
}

func (s *profileService) saveState(ctx context.Context, userID uint, state *userState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal user state: %w", err)
	}
	return s.stateRepo.Save(ctx, userID, repository.NamespaceUser,
		&repository.StateBlob{Version: userStateVersion, State: raw})
}

func defaultUserState() *userState {
	return &userState{
		Profile:       model.UserProfile{Name: "用户", Gender: "male"},
		SavedProfiles: []model.PersonProfile{},
	}
}

// migrateUserState 把旧版本快照升级到当前版本。
// v1 只有 profile 字段；v2 在其上补充空的 savedProfiles 列表。
func migrateUserState(blob *repository.StateBlob) *repository.StateBlob {
	var legacy struct {
		Profile model.UserProfile `json:"profile"`
	}
	if err := json.Unmarshal(blob.State, &legacy); err != nil {
		return &repository.StateBlob{Version: userStateVersion, State: blob.State}
	}
	raw, err := json.Marshal(userState{
		Profile:       legacy.Profile,
		SavedProfiles: []model.PersonProfile{},
	})
	if err != nil {
		return &repository.StateBlob{Version: userStateVersion, State: blob.State}
	}
	return &repository.StateBlob{Version: userStateVersion, State: raw}
}
