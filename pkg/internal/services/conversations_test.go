package services

import (
	"strings"
	"sync"
	"testing"

	"github.com/edvisory/portal-messaging/pkg/internal/database"
	"github.com/edvisory/portal-messaging/pkg/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGetOrCreateApplicationConversation(t *testing.T) {
	setupStore(t)
	application := seedApplication(t, student.UserID)

	conversation, err := GetOrCreateApplicationConversation(student, application.ID)
	require.NoError(t, err)
	require.NotNil(t, conversation.ApplicationID)
	assert.Equal(t, application.ID, *conversation.ApplicationID)
	require.NotNil(t, conversation.Subject)
	assert.Contains(t, *conversation.Subject, "Application #")
	assert.Len(t, conversation.Participants, 1)

	again, err := GetOrCreateApplicationConversation(counselor, application.ID)
	require.NoError(t, err)
	assert.Equal(t, conversation.ID, again.ID)
	assert.Len(t, again.Participants, 1, "staff join when they reply, not when they look")

	_, err = GetOrCreateApplicationConversation(other, application.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = GetOrCreateApplicationConversation(student, application.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = GetOrCreateApplicationConversation(Identity{}, application.ID)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestApplicationConversationStaffFirst(t *testing.T) {
	setupStore(t)
	application := seedApplication(t, student.UserID)

	opened, err := GetOrCreateApplicationConversation(counselor, application.ID)
	require.NoError(t, err)

	conversation, err := GetOrCreateApplicationConversation(student, application.ID)
	require.NoError(t, err)
	assert.Equal(t, opened.ID, conversation.ID)

	ids := make([]uint, 0, len(conversation.Participants))
	for _, participant := range conversation.Participants {
		ids = append(ids, participant.UserID)
	}
	assert.ElementsMatch(t, []uint{counselor.UserID, student.UserID}, ids)
}

func TestGetOrCreateDirectConversation(t *testing.T) {
	setupStore(t)

	conversation, err := GetOrCreateDirectConversation(student, counselor.UserID)
	require.NoError(t, err)
	assert.True(t, conversation.IsDirect())
	assert.Len(t, conversation.Participants, 2)

	reversed, err := GetOrCreateDirectConversation(counselor, student.UserID)
	require.NoError(t, err)
	assert.Equal(t, conversation.ID, reversed.ID)

	_, err = GetOrCreateDirectConversation(student, student.UserID)
	assert.ErrorIs(t, err, ErrValidation)
}

// The in-memory store runs on a single connection, so callers here are serialized and later ones
// find the row at lookup. The unique-violation fallback is covered by
// TestCreateConversationFallsBackOnUniqueViolation.
func TestDirectConversationConcurrentCreate(t *testing.T) {
	setupStore(t)

	const callers = 8
	ids := make([]uint, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			caller, peer := student, counselor.UserID
			if idx%2 == 1 {
				caller, peer = counselor, student.UserID
			}
			conversation, err := GetOrCreateDirectConversation(caller, peer)
			ids[idx], errs[idx] = conversation.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var count int64
	require.NoError(t, database.C.Model(&models.Conversation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateConversationFallsBackOnUniqueViolation(t *testing.T) {
	setupStore(t)

	key := models.DirectPairKey(student.UserID, counselor.UserID)
	existing := models.Conversation{DirectKey: &key}
	require.NoError(t, database.C.Create(&existing).Error)

	lookup := func(tx *gorm.DB) *gorm.DB { return tx.Where("direct_key = ?", key) }
	conversation, err := createConversation(database.C, models.Conversation{DirectKey: &key}, []uint{student.UserID, counselor.UserID}, lookup)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, conversation.ID)
}

func TestDirectConversationDriftsWhenThirdUserJoins(t *testing.T) {
	setupStore(t)

	conversation, err := GetOrCreateDirectConversation(student, other.UserID)
	require.NoError(t, err)

	// A messaging admin replying joins the thread, the pair no longer owns it.
	_, err = AppendMessage(admin, ConversationRef(conversation.ID), "Hello both", nil)
	require.NoError(t, err)

	drifted, err := getConversation(database.C, conversation.ID)
	require.NoError(t, err)
	assert.Nil(t, drifted.DirectKey)

	fresh, err := GetOrCreateDirectConversation(student, other.UserID)
	require.NoError(t, err)
	assert.NotEqual(t, conversation.ID, fresh.ID)
	assert.Len(t, fresh.Participants, 2)
}

func TestGetConversationAdvancesLastRead(t *testing.T) {
	setupStore(t)

	conversation, err := GetOrCreateDirectConversation(student, counselor.UserID)
	require.NoError(t, err)
	_, err = AppendMessage(counselor, ConversationRef(conversation.ID), "Your visa documents are ready", nil)
	require.NoError(t, err)

	unread, err := GetUnreadCount(student.UserID, UnreadFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread.Count)

	loaded, err := GetConversation(student, conversation.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 1)

	unread, err = GetUnreadCount(student.UserID, UnreadFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread.Count)

	_, err = GetConversation(other, conversation.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = GetConversation(admin, conversation.ID)
	assert.NoError(t, err)

	_, err = GetConversation(student, conversation.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConversations(t *testing.T) {
	setupStore(t)
	application := seedApplication(t, student.UserID)

	first, err := GetOrCreateApplicationConversation(student, application.ID)
	require.NoError(t, err)
	second, err := GetOrCreateDirectConversation(other, counselor.UserID)
	require.NoError(t, err)

	_, err = AppendMessage(student, ConversationRef(first.ID), strings.Repeat("é", 150), nil)
	require.NoError(t, err)
	_, err = AppendMessage(other, ConversationRef(second.ID), "Later message", []string{"files/transcript.pdf"})
	require.NoError(t, err)

	mine, err := ListConversations(student)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)
	require.NotNil(t, mine[0].LastMessage)
	assert.Equal(t, DefaultPreviewLength, len([]rune(mine[0].LastMessage.Content)))

	all, err := ListConversations(admin)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "most recently active first")
	assert.Equal(t, 1, all[0].LastMessage.Attachments)
}

func TestDeleteConversation(t *testing.T) {
	setupStore(t)

	conversation, err := GetOrCreateDirectConversation(student, counselor.UserID)
	require.NoError(t, err)
	_, err = AppendMessage(counselor, ConversationRef(conversation.ID), "Welcome", nil)
	require.NoError(t, err)
	_, err = MarkConversationRead(student, conversation.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, DeleteConversation(student, conversation.ID), ErrForbidden)
	require.NoError(t, DeleteConversation(admin, conversation.ID))
	assert.ErrorIs(t, DeleteConversation(admin, conversation.ID), ErrNotFound)

	for _, model := range []any{&models.Message{}, &models.ReadReceipt{}, &models.ConversationParticipant{}} {
		var count int64
		require.NoError(t, database.C.Model(model).Count(&count).Error)
		assert.Zero(t, count)
	}
}
