package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cppla/photoshare/models"
)

func TestPolicies(t *testing.T) {
	tests := []struct {
		policy Policy
		role   models.Role
		ok     bool
	}{
		{AnyUser, models.RoleUser, true},
		{AnyUser, models.RoleAdmin, true},
		{AnyUser, models.Role("guest"), false},
		{AdminOnly, models.RoleAdmin, true},
		{AdminOnly, models.RoleModerator, false},
		{AdminOnly, models.RoleUser, false},
		{AdminOrModerator, models.RoleModerator, true},
		{AdminOrModerator, models.RoleAdmin, true},
		{AdminOrModerator, models.RoleUser, false},
	}
	for _, tt := range tests {
		err := tt.policy.Authorize(tt.role)
		if tt.ok {
			assert.NoError(t, err, tt.role)
		} else {
			assert.ErrorIs(t, err, ErrForbidden, tt.role)
		}
	}
}

func TestCanModify(t *testing.T) {
	assert.NoError(t, CanModify(Actor{ID: 3, Role: models.RoleUser}, 3))
	assert.ErrorIs(t, CanModify(Actor{ID: 3, Role: models.RoleUser}, 4), ErrForbidden)
	assert.NoError(t, CanModify(Actor{ID: 3, Role: models.RoleModerator}, 4))
	assert.NoError(t, CanModify(Actor{ID: 3, Role: models.RoleAdmin}, 4))
}
