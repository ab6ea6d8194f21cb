package firebase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gamescrow/internal/domain/entity"
)

func TestRoleFromClaims(t *testing.T) {
	assert.Equal(t, entity.RoleAdmin, roleFromClaims(map[string]interface{}{"role": "admin"}))
	assert.Equal(t, entity.RoleAdmin, roleFromClaims(map[string]interface{}{"admin": true}))
	assert.Equal(t, entity.RoleUser, roleFromClaims(map[string]interface{}{"admin": "true"}))
	assert.Equal(t, entity.RoleUser, roleFromClaims(map[string]interface{}{"role": "moderator"}))
	assert.Equal(t, entity.RoleUser, roleFromClaims(nil))
}
