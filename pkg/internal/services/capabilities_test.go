package services

import (
	"fmt"
	"testing"

	"github.com/edvisory/portal-messaging/pkg/internal/models"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagingAdminRoles(t *testing.T) {
	for _, role := range DefaultMessagingAdminRoles {
		assert.True(t, IsMessagingAdmin(role), role)
	}
	assert.False(t, IsMessagingAdmin(RoleStudent))
	assert.False(t, IsMessagingAdmin(RoleAccountant))

	viper.Set("messaging.admin_roles", []string{RoleSuperAdmin, RoleAccountant})
	t.Cleanup(func() { viper.Set("messaging.admin_roles", nil) })

	assert.True(t, IsMessagingAdmin(RoleAccountant))
	assert.False(t, IsMessagingAdmin(RoleCounselor))
}

func TestCanManageThread(t *testing.T) {
	assert.True(t, CanManageThread(admin, 99))
	assert.True(t, CanManageThread(accountant, accountant.UserID))
	assert.False(t, CanManageThread(accountant, 99))
	assert.False(t, CanManageThread(student, 99))
	assert.True(t, IsStudent(student.Role))
	assert.False(t, Identity{UserID: 1}.IsAuthenticated())
}

func TestThreadRef(t *testing.T) {
	var message models.Message
	GroupRef(7).Attach(&message)
	ConversationRef(3).Attach(&message)

	require.NotNil(t, message.ConversationID)
	assert.Nil(t, message.GroupID)
	assert.Nil(t, message.BroadcastID)

	ref, err := ThreadOf(message)
	require.NoError(t, err)
	assert.Equal(t, ConversationRef(3), ref)
	assert.Equal(t, "conversation#3", ref.String())

	message.GroupID = message.ConversationID
	_, err = ThreadOf(message)
	assert.ErrorIs(t, err, models.ErrMessageTarget)

	_, err = ThreadOf(models.Message{})
	assert.ErrorIs(t, err, models.ErrMessageTarget)
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(fmt.Errorf("%w: nope", ErrForbidden)))
	assert.True(t, IsClientError(ErrNoOp))
	assert.False(t, IsClientError(fmt.Errorf("%w: boom", ErrTransaction)))
	assert.False(t, IsClientError(ErrConflict))
}
