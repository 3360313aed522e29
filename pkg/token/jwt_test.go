package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	m := NewJWTManager("test-secret", 2, 7)

	tokenString, err := m.GenerateToken(42, "zhangsan")
	require.NoError(t, err)

	claims, err := m.VerifyToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "zhangsan", claims.Username)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	m := NewJWTManager("secret-a", 2, 7)
	other := NewJWTManager("secret-b", 2, 7)

	tokenString, err := m.GenerateToken(1, "zhangsan")
	require.NoError(t, err)

	_, err = other.VerifyToken(tokenString)
	assert.Error(t, err)
}

func TestVerifyTokenExpired(t *testing.T) {
	// 有效期为 0 小时的 token 立即过期
	m := NewJWTManager("test-secret", 0, 0)

	tokenString, err := m.GenerateToken(1, "zhangsan")
	require.NoError(t, err)

	_, err = m.VerifyToken(tokenString)
	assert.Error(t, err)
}

func TestVerifyTokenGarbage(t *testing.T) {
	m := NewJWTManager("test-secret", 2, 7)
	_, err := m.VerifyToken("not-a-jwt")
	assert.Error(t, err)
}
