package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"qimen-smart-go/internal/model"
	"qimen-smart-go/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfileFixture() (ProfileService, repository.StateRepository) {
	stateRepo := repository.NewMemoryStateRepository()
	qimenSvc := NewQimenService(&fakeQimenClient{err: errors.New("down")}, stateRepo)
	return NewProfileService(stateRepo, qimenSvc), stateRepo
}

func TestSelfProfileDefaults(t *testing.T) {
	svc, _ := newProfileFixture()

	profile, err := svc.GetSelfProfile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "用户", profile.Name)
	assert.Equal(t, "male", profile.Gender)
	assert.Nil(t, profile.BirthChart)
}

func TestUpdateSelfProfilePreservesBirthChart(t *testing.T) {
	svc, _ := newProfileFixture()
	ctx := context.Background()

	birth := time.Date(1990, 5, 20, 8, 30, 0, 0, time.Local).UnixMilli()
	_, err := svc.UpdateSelfProfile(ctx, 1, model.UserProfile{Name: "张三", Gender: "male", BirthDate: birth})
	require.NoError(t, err)

	report, err := svc.GenerateSelfBirthChart(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, report)

	// 排命盘的固定参数：拆补法、转盘、不考虑真太阳时
	assert.Equal(t, 0, report.Input.JuModel)
	assert.Equal(t, 1, report.Input.PanModel)
	assert.Equal(t, 2, report.Input.Zhen)
	assert.Equal(t, "命盘", report.Input.QuestionType)
	assert.Equal(t, 1990, report.Input.Year)

	// 普通更新不覆盖已生成的命盘
	updated, err := svc.UpdateSelfProfile(ctx, 1, model.UserProfile{Name: "李四", Gender: "female", BirthDate: birth})
	require.NoError(t, err)
	assert.Equal(t, "李四", updated.Name)
	require.NotNil(t, updated.BirthChart)
	assert.Equal(t, report.ID, updated.BirthChart.ID)
}

func TestGenerateBirthChartRequiresBirthDate(t *testing.T) {
	svc, _ := newProfileFixture()

	_, err := svc.GenerateSelfBirthChart(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoBirthDate)
}

func TestSavedProfilesCRUD(t *testing.T) {
	svc, _ := newProfileFixture()
	ctx := context.Background()

	birth := time.Date(1995, 8, 1, 14, 0, 0, 0, time.Local).UnixMilli()
	created, err := svc.CreateSavedProfile(ctx, 1, model.PersonProfile{
		Name: "王五", Gender: "female", BirthDate: birth, Relationship: "朋友", Notes: "备注",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "朋友", created.Relationship)

	// 更新
	created.Notes = "新备注"
	updated, err := svc.UpdateSavedProfile(ctx, 1, *created)
	require.NoError(t, err)
	assert.Equal(t, "新备注", updated.Notes)

	// 为保存档案排命盘
	report, err := svc.GenerateSavedBirthChart(ctx, 1, created.ID)
	require.NoError(t, err)
	require.NotNil(t, report)

	profiles, err := svc.ListSavedProfiles(ctx, 1)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.NotNil(t, profiles[0].BirthChart)

	// 删除
	require.NoError(t, svc.DeleteSavedProfile(ctx, 1, created.ID))
	profiles, err = svc.ListSavedProfiles(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, profiles)

	// 不存在的档案
	_, err = svc.UpdateSavedProfile(ctx, 1, model.PersonProfile{ID: "missing"})
	assert.ErrorIs(t, err, ErrProfileNotFound)
	_, err = svc.GenerateSavedBirthChart(ctx, 1, "missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestUserStateMigrationV1ToV2(t *testing.T) {
	svc, stateRepo := newProfileFixture()
	ctx := context.Background()

	// 预置一份 v1 快照：只有命主档案，没有保存档案列表
	legacy, err := json.Marshal(map[string]any{
		"profile": model.UserProfile{Name: "旧用户", Gender: "female"},
	})
	require.NoError(t, err)
	require.NoError(t, stateRepo.Save(ctx, 1, repository.NamespaceUser,
		&repository.StateBlob{Version: 1, State: legacy}))

	profile, err := svc.GetSelfProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "旧用户", profile.Name)

	profiles, err := svc.ListSavedProfiles(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, profiles)

	// 迁移后可以正常写入保存档案
	_, err = svc.CreateSavedProfile(ctx, 1, model.PersonProfile{Name: "新档案"})
	require.NoError(t, err)
	profiles, err = svc.ListSavedProfiles(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}
