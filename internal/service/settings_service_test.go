package service

import (
	"context"
	"testing"

	"qimen-smart-go/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThemeDefaultsToSystem(t *testing.T) {
	svc := NewSettingsService(repository.NewMemoryStateRepository())

	theme, err := svc.GetTheme(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, ThemeSystem, theme)
}

func TestSetTheme(t *testing.T) {
	svc := NewSettingsService(repository.NewMemoryStateRepository())
	ctx := context.Background()

	require.NoError(t, svc.SetTheme(ctx, 1, ThemeDark))
	theme, err := svc.GetTheme(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)

	// 用户之间互不影响
	theme, err = svc.GetTheme(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, ThemeSystem, theme)

	assert.ErrorIs(t, svc.SetTheme(ctx, 1, ThemeMode("neon")), ErrInvalidTheme)
}
