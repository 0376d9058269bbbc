package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/edvisory/portal-messaging/pkg/internal/database"
	"github.com/edvisory/portal-messaging/pkg/internal/models"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

const DefaultPreviewLength = 100

type MessagePreview struct {
	ID          uint      `json:"id"`
	SenderID    uint      `json:"sender_id"`
	SenderRole  string    `json:"sender_role"`
	Content     string    `json:"content"`
	Attachments int       `json:"attachments"`
	CreatedAt   time.Time `json:"created_at"`
}

type ConversationSummary struct {
	models.Conversation

	LastMessage *MessagePreview `json:"last_message"`
}

func defaultSubject(applicationId uint) string {
	if format := viper.GetString("messaging.default_subject"); len(format) > 0 {
		return fmt.Sprintf(format, applicationId)
	}
	return fmt.Sprintf("Application #%d", applicationId)
}

func previewLength() int {
	if length := viper.GetInt("messaging.preview_length"); length > 0 {
		return length
	}
	return DefaultPreviewLength
}

func truncate(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit])
}

func getConversation(tx *gorm.DB, id uint) (models.Conversation, error) {
	var conversation models.Conversation
	if err := tx.First(&conversation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation, fmt.Errorf("%w: conversation #%d", ErrNotFound, id)
		}
		return conversation, err
	}
	return conversation, nil
}

func isParticipant(tx *gorm.DB, conversationId, userId uint) (bool, error) {
	var count int64
	if err := tx.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// isApplicationOwner is true when the conversation is anchored to an application the user owns.
func isApplicationOwner(tx *gorm.DB, conversation models.Conversation, userId uint) (bool, error) {
	if conversation.ApplicationID == nil {
		return false, nil
	}
	owner, err := GetApplicationOwner(tx, *conversation.ApplicationID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return owner == userId, nil
}

// canAccessConversation returns whether the user may read the conversation and whether they already participate.
func canAccessConversation(tx *gorm.DB, user Identity, conversation models.Conversation) (bool, bool, error) {
	joined, err := isParticipant(tx, conversation.ID, user.UserID)
	if err != nil {
		return false, false, err
	} else if joined || IsMessagingAdmin(user.Role) {
		return true, joined, nil
	}
	owner, err := isApplicationOwner(tx, conversation, user.UserID)
	return owner, false, err
}

func loadConversationThread(tx *gorm.DB, id uint) (models.Conversation, error) {
	var conversation models.Conversation
	if err := tx.
		Preload("Participants").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Messages.ReadReceipts").
		First(&conversation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation, fmt.Errorf("%w: conversation #%d", ErrNotFound, id)
		}
		return conversation, err
	}
	return conversation, nil
}

func findOrCreateApplicationConversation(tx *gorm.DB, applicationId, creatorId uint) (models.Conversation, error) {
	lookup := func(tx *gorm.DB) *gorm.DB {
		return tx.Where("application_id = ?", applicationId)
	}

	var conversation models.Conversation
	if err := lookup(tx).First(&conversation).Error; err == nil {
		return conversation, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return conversation, err
	}

	subject := defaultSubject(applicationId)
	return createConversation(tx, models.Conversation{
		ApplicationID: &applicationId,
		Subject:       &subject,
	}, []uint{creatorId}, lookup)
}

// GetOrCreateApplicationConversation opens the thread anchored to an application.
// Staff opening an existing thread do not join it, they join when they reply.
// The owning student always participates in their own application's thread.
func GetOrCreateApplicationConversation(user Identity, applicationId uint) (models.Conversation, error) {
	if err := ensureAuthenticated(user); err != nil {
		return models.Conversation{}, err
	}

	target := fmt.Sprintf("application#%d", applicationId)

	owner, err := GetApplicationOwner(database.C, applicationId)
	if err != nil {
		logFailure("get_or_create_application_conversation", user, target, err)
		return models.Conversation{}, err
	} else if owner != user.UserID && !IsMessagingAdmin(user.Role) {
		err = fmt.Errorf("%w: you are not allowed to view messages of this application", ErrForbidden)
		logFailure("get_or_create_application_conversation", user, target, err)
		return models.Conversation{}, err
	}

	var conversation models.Conversation
	err = database.C.Transaction(func(tx *gorm.DB) error {
		if conversation, err = findOrCreateApplicationConversation(tx, applicationId, user.UserID); err != nil {
			return err
		}
		if owner == user.UserID {
			if _, err := EnsureParticipant(tx, conversation, user.UserID); err != nil {
				return err
			}
		}
		return UpdateLastRead(tx, conversation.ID, user.UserID)
	})
	if err != nil {
		logFailure("get_or_create_application_conversation", user, target, err)
		return conversation, err
	}

	return loadConversationThread(database.C, conversation.ID)
}

// GetConversation loads a thread for reading and advances the reader's watermark.
func GetConversation(user Identity, id uint) (models.Conversation, error) {
	if err := ensureAuthenticated(user); err != nil {
		return models.Conversation{}, err
	}

	target := fmt.Sprintf("conversation#%d", id)

	conversation, err := getConversation(database.C, id)
	if err != nil {
		logFailure("get_conversation", user, target, err)
		return conversation, err
	}

	allowed, joined, err := canAccessConversation(database.C, user, conversation)
	if err != nil {
		logFailure("get_conversation", user, target, err)
		return conversation, err
	} else if !allowed {
		err = fmt.Errorf("%w: you are not a participant of this conversation", ErrForbidden)
		logFailure("get_conversation", user, target, err)
		return conversation, err
	}

	if joined {
		if err := UpdateLastRead(database.C, conversation.ID, user.UserID); err != nil {
			logFailure("get_conversation", user, target, err)
			return conversation, err
		}
	}

	return loadConversationThread(database.C, conversation.ID)
}

func ListConversations(user Identity) ([]ConversationSummary, error) {
	if err := ensureAuthenticated(user); err != nil {
		return nil, err
	}

	tx := database.C.Preload("Participants")
	if !IsMessagingAdmin(user.Role) {
		tx = tx.Where("id IN (?)", database.C.
			Model(&models.ConversationParticipant{}).
			Select("conversation_id").
			Where("user_id = ?", user.UserID),
		)
	}

	var conversations []models.Conversation
	if err := tx.Order("updated_at DESC, id DESC").Find(&conversations).Error; err != nil {
		logFailure("list_conversations", user, "conversations", err)
		return nil, err
	}

	previews, err := getLatestMessages(lo.Map(conversations, func(item models.Conversation, _ int) uint {
		return item.ID
	}))
	if err != nil {
		logFailure("list_conversations", user, "conversations", err)
		return nil, err
	}

	return lo.Map(conversations, func(item models.Conversation, _ int) ConversationSummary {
		summary := ConversationSummary{Conversation: item}
		if message, ok := previews[item.ID]; ok {
			summary.LastMessage = &MessagePreview{
				ID:          message.ID,
				SenderID:    message.SenderID,
				SenderRole:  message.SenderRole,
				Content:     truncate(message.Content, previewLength()),
				Attachments: len(message.Attachments),
				CreatedAt:   message.CreatedAt,
			}
		}
		return summary
	}), nil
}

func getLatestMessages(conversationIds []uint) (map[uint]models.Message, error) {
	if len(conversationIds) == 0 {
		return map[uint]models.Message{}, nil
	}

	var messages []models.Message
	if err := database.C.
		Where("id IN (?)", database.C.
			Model(&models.Message{}).
			Select("MAX(id)").
			Where("conversation_id IN ?", conversationIds).
			Group("conversation_id"),
		).
		Find(&messages).Error; err != nil {
		return nil, err
	}

	return lo.SliceToMap(messages, func(item models.Message) (uint, models.Message) {
		return *item.ConversationID, item
	}), nil
}

// purgeMessages removes the messages of a thread together with their read receipts.
func purgeMessages(tx *gorm.DB, column string, threadId uint) error {
	messages := tx.Model(&models.Message{}).Select("id").Where(column+" = ?", threadId)
	if err := tx.Where("message_id IN (?)", messages).Delete(&models.ReadReceipt{}).Error; err != nil {
		return err
	}
	return tx.Where(column+" = ?", threadId).Delete(&models.Message{}).Error
}

func DeleteConversation(user Identity, id uint) error {
	if err := ensureAuthenticated(user); err != nil {
		return err
	}

	target := fmt.Sprintf("conversation#%d", id)

	if !IsMessagingAdmin(user.Role) {
		err := fmt.Errorf("%w: only messaging admins can delete conversations", ErrForbidden)
		logFailure("delete_conversation", user, target, err)
		return err
	}

	conversation, err := getConversation(database.C, id)
	if err != nil {
		logFailure("delete_conversation", user, target, err)
		return err
	}

	err = database.C.Transaction(func(tx *gorm.DB) error {
		if err := purgeMessages(tx, "conversation_id", conversation.ID); err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", conversation.ID).Delete(&models.ConversationParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&conversation).Error
	})
	if err != nil {
		logFailure("delete_conversation", user, target, err)
	}
	return err
}
