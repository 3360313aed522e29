package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"qimen-smart-go/internal/repository"
)

const themeStateVersion = 1

// ThemeMode 是界面主题模式。
type ThemeMode string

const (
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
	ThemeSystem ThemeMode = "system"
)

// ErrInvalidTheme 表示主题取值不在允许范围内。
var ErrInvalidTheme = fmt.Errorf("invalid theme mode")

type themeState struct {
	Theme ThemeMode `json:"theme"`
}

// SettingsService 管理用户的界面偏好设置。
type SettingsService interface {
	GetTheme(ctx context.Context, userID uint) (ThemeMode, error)
	SetTheme(ctx context.Context, userID uint, theme ThemeMode) error
}

type settingsService struct {
	stateRepo repository.StateRepository
	mu        sync.Mutex
}

// NewSettingsService 创建一个新的 SettingsService 实例。
func NewSettingsService(stateRepo repository.StateRepository) SettingsService {
	return &settingsService{stateRepo: stateRepo}
}

func (s *settingsService) GetTheme(ctx context.Context, userID uint) (ThemeMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := s.stateRepo.Load(ctx, userID, repository.NamespaceTheme)
	if err != nil {
		return "", fmt.Errorf("failed to load theme state: %w", err)
	}
	if blob == nil {
		return ThemeSystem, nil
	}
	var state themeState
	if err := json.Unmarshal(blob.State, &state); err != nil {
		return "", fmt.Errorf("failed to unmarshal theme state: %w", err)
	}
	switch state.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
		return state.Theme, nil
	default:
		return ThemeSystem, nil
	}
}

func (s *settingsService) SetTheme(ctx context.Context, userID uint, theme ThemeMode) error {
	switch theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return ErrInvalidTheme
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(themeState{Theme: theme})
	if err != nil {
		return fmt.Errorf("failed to marshal theme state: %w", err)
	}
	return s.stateRepo.Save(ctx, userID, repository.NamespaceTheme,
		&repository.StateBlob{Version: themeStateVersion, State: raw})
}
