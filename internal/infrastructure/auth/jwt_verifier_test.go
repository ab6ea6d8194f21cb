package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamescrow/internal/domain/entity"
	"gamescrow/pkg/errors"
)

func TestJWTVerifier_IssueAndVerify(t *testing.T) {
	v := NewJWTVerifier("test-secret")

	token, err := v.Issue("seller-1", entity.RoleUser, time.Hour)
	require.NoError(t, err)

	actor, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "seller-1", actor.UserID)
	assert.False(t, actor.IsAdmin())
}

func TestJWTVerifier_AdminRole(t *testing.T) {
	v := NewJWTVerifier("test-secret")

	token, err := v.Issue("admin-1", entity.RoleAdmin, time.Hour)
	require.NoError(t, err)

	actor, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, actor.IsAdmin())
}

func TestJWTVerifier_UIDClaim(t *testing.T) {
	v := NewJWTVerifier("test-secret")

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UID: "buyer-9",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	actor, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "buyer-9", actor.UserID)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier("test-secret")

	expired, err := v.Issue("buyer-1", entity.RoleUser, -time.Minute)
	require.NoError(t, err)

	wrongKey, err := NewJWTVerifier("other-secret").Issue("buyer-1", entity.RoleUser, time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":   expired,
		"wrong key": wrongKey,
		"garbage":   "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			assert.True(t, errors.Is(err, errors.CodeUnauthorized))
		})
	}
}
