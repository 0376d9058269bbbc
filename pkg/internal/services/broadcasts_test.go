package services

import (
	"errors"
	"testing"

	"github.com/edvisory/portal-messaging/pkg/internal/database"
	"github.com/edvisory/portal-messaging/pkg/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateBroadcast(t *testing.T) {
	setupStore(t)

	_, err := CreateBroadcast(student, "Not allowed", []uint{other.UserID})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = CreateBroadcast(counselor, " ", []uint{other.UserID})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = CreateBroadcast(counselor, "Nobody", nil)
	assert.ErrorIs(t, err, ErrValidation)

	broadcast, err := CreateBroadcast(accountant, "Tuition reminder", []uint{student.UserID, other.UserID, student.UserID})
	require.NoError(t, err)
	assert.Len(t, broadcast.Recipients, 2)

	added, err := AddRecipients(accountant, broadcast.ID, []uint{other.UserID, counselor.UserID})
	require.NoError(t, err)
	assert.Equal(t, []uint{counselor.UserID}, added)

	_, err = AddRecipients(accountant, broadcast.ID, []uint{other.UserID})
	assert.ErrorIs(t, err, ErrNoOp)

	_, err = AddRecipients(student, broadcast.ID, []uint{admin.UserID})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPostBroadcastMessageFansOut(t *testing.T) {
	setupStore(t)

	existing, err := GetOrCreateDirectConversation(counselor, student.UserID)
	require.NoError(t, err)

	broadcast, err := CreateBroadcast(counselor, "Orientation", []uint{student.UserID, other.UserID, counselor.UserID})
	require.NoError(t, err)

	_, err = PostBroadcastMessage(student, broadcast.ID, "hijack", nil)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = PostBroadcastMessage(counselor, broadcast.ID, " ", nil)
	assert.ErrorIs(t, err, ErrValidation)

	audit, err := PostBroadcastMessage(counselor, broadcast.ID, "Orientation is on Monday", []string{"files/schedule.pdf"})
	require.NoError(t, err)
	require.NotNil(t, audit.BroadcastID)

	var copies []models.Message
	require.NoError(t, database.C.Where("related_message_id = ?", audit.ID).Order("id ASC").Find(&copies).Error)
	require.Len(t, copies, 2, "the sender never receives a copy")

	for _, message := range copies {
		assert.Equal(t, counselor.UserID, message.SenderID)
		assert.Equal(t, audit.Content, message.Content)
		assert.Equal(t, []string{"files/schedule.pdf"}, []string(message.Attachments))
		require.NotNil(t, message.ConversationID)
	}
	assert.Equal(t, existing.ID, *copies[0].ConversationID, "existing direct thread is reused")

	unread, err := GetUnreadCount(other.UserID, UnreadFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread.Count)

	history, err := ListBroadcastMessages(counselor, broadcast.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = ListBroadcastMessages(student, broadcast.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	viaAppend, err := AppendMessage(counselor, BroadcastRef(broadcast.ID), "Reminder", nil)
	require.NoError(t, err)
	require.NotNil(t, viaAppend.BroadcastID)
}

func TestPostBroadcastMessageIsAtomic(t *testing.T) {
	db := setupStore(t)

	broadcast, err := CreateBroadcast(counselor, "Scholarships", []uint{student.UserID, other.UserID, accountant.UserID})
	require.NoError(t, err)

	inserts := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_third_message", func(tx *gorm.DB) {
		if tx.Statement.Schema == nil || tx.Statement.Schema.Table != database.TableName(db, &models.Message{}) {
			return
		}
		inserts++
		if inserts == 3 {
			_ = tx.AddError(errors.New("disk is full"))
		}
	}))

	_, err = PostBroadcastMessage(counselor, broadcast.ID, "Apply before the deadline", nil)
	assert.ErrorIs(t, err, ErrTransaction)

	for _, model := range []any{&models.Message{}, &models.Conversation{}, &models.ConversationParticipant{}} {
		var count int64
		require.NoError(t, database.C.Model(model).Count(&count).Error)
		assert.Zero(t, count)
	}
}

func TestListBroadcastsHidesRecipients(t *testing.T) {
	setupStore(t)

	broadcast, err := CreateBroadcast(counselor, "Payments", []uint{student.UserID, other.UserID})
	require.NoError(t, err)
	_, err = CreateBroadcast(accountant, "Staff only", []uint{admin.UserID})
	require.NoError(t, err)

	received, err := ListBroadcasts(student)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, broadcast.ID, received[0].ID)
	assert.True(t, received[0].IsRecipient)
	assert.Empty(t, received[0].Recipients)
	assert.Nil(t, received[0].RecipientCount)

	created, err := ListBroadcasts(counselor)
	require.NoError(t, err)
	assert.Len(t, created, 2, "counselors are messaging admins")
	for _, item := range created {
		require.NotNil(t, item.RecipientCount)
		assert.EqualValues(t, len(item.Recipients), *item.RecipientCount)
	}

	own, err := ListBroadcasts(accountant)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "Staff only", own[0].Name)
	assert.EqualValues(t, 1, *own[0].RecipientCount)
}

func TestCreateBroadcastKeepsBroadcastWhenRecipientsFail(t *testing.T) {
	db := setupStore(t)

	failing := true
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_recipients", func(tx *gorm.DB) {
		if !failing || tx.Statement.Schema == nil {
			return
		}
		if tx.Statement.Schema.Table == database.TableName(db, &models.BroadcastRecipient{}) {
			_ = tx.AddError(errors.New("connection reset"))
		}
	}))

	broadcast, err := CreateBroadcast(counselor, "Visa deadlines", []uint{student.UserID, other.UserID})
	require.Error(t, err)
	assert.False(t, IsClientError(err))
	require.NotZero(t, broadcast.ID)
	assert.Empty(t, broadcast.Recipients)

	stored, err := getBroadcast(database.C, broadcast.ID)
	require.NoError(t, err)
	assert.Equal(t, "Visa deadlines", stored.Name)

	ids, err := listRecipientIds(database.C, broadcast.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	failing = false
	added, err := AddRecipients(counselor, broadcast.ID, []uint{student.UserID, other.UserID})
	require.NoError(t, err)
	assert.Equal(t, []uint{student.UserID, other.UserID}, added)
}
