package service

import (
	"testing"
	"time"

	"qimen-smart-go/internal/repository"
	"qimen-smart-go/pkg/hash"
	"qimen-smart-go/pkg/token"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockUserService(t *testing.T) (UserService, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	jwtManager := token.NewJWTManager("test-secret", 2, 7)
	svc := NewUserService(repository.NewUserRepository(gormDB), jwtManager)
	return svc, mock, func() { _ = sqlDB.Close() }
}

func userRows(username, hashedPassword string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "password", "created_at", "updated_at"}).
		AddRow(1, username, hashedPassword, time.Now(), time.Now())
}

func TestRegisterSuccess(t *testing.T) {
	svc, mock, cleanup := newMockUserService(t)
	defer cleanup()

	// 用户名不存在
	mock.ExpectQuery("SELECT \\* FROM `users`").
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user, err := svc.Register("zhangsan", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "zhangsan", user.Username)
	// 密码已被哈希
	assert.NotEqual(t, "secret123", user.Password)
	assert.True(t, hash.CheckPassword("secret123", user.Password))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, mock, cleanup := newMockUserService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `users`").
		WillReturnRows(userRows("zhangsan", "hashed"))

	_, err := svc.Register("zhangsan", "secret123")
	assert.EqualError(t, err, "用户名已存在")
}

func TestLoginSuccess(t *testing.T) {
	svc, mock, cleanup := newMockUserService(t)
	defer cleanup()

	hashed, err := hash.HashPassword("secret123")
	require.NoError(t, err)
	mock.ExpectQuery("SELECT \\* FROM `users`").
		WillReturnRows(userRows("zhangsan", hashed))

	accessToken, refreshToken, err := svc.Login("zhangsan", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)
	assert.NotEmpty(t, refreshToken)

	// 签发的 access token 可以通过校验
	jwtManager := token.NewJWTManager("test-secret", 2, 7)
	claims, err := jwtManager.VerifyToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, "zhangsan", claims.Username)
	assert.Equal(t, uint(1), claims.UserID)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, mock, cleanup := newMockUserService(t)
	defer cleanup()

	hashed, err := hash.HashPassword("secret123")
	require.NoError(t, err)
	mock.ExpectQuery("SELECT \\* FROM `users`").
		WillReturnRows(userRows("zhangsan", hashed))

	_, _, err = svc.Login("zhangsan", "wrong")
	assert.EqualError(t, err, "invalid credentials")
}

func TestLoginUnknownUser(t *testing.T) {
	svc, mock, cleanup := newMockUserService(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `users`").
		WillReturnError(gorm.ErrRecordNotFound)

	_, _, err := svc.Login("nobody", "secret123")
	assert.EqualError(t, err, "invalid credentials")
}

func TestRefreshToken(t *testing.T) {
	svc, mock, cleanup := newMockUserService(t)
	defer cleanup()

	hashed, err := hash.HashPassword("secret123")
	require.NoError(t, err)
	mock.ExpectQuery("SELECT \\* FROM `users`").
		WillReturnRows(userRows("zhangsan", hashed))

	jwtManager := token.NewJWTManager("test-secret", 2, 7)
	refresh, err := jwtManager.GenerateRefreshToken(1, "zhangsan")
	require.NoError(t, err)

	newAccess, newRefresh, err := svc.RefreshToken(refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)

	_, _, err = svc.RefreshToken("not-a-token")
	assert.EqualError(t, err, "invalid refresh token")
}
