package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/edvisory/portal-messaging/pkg/internal/database"
	"github.com/edvisory/portal-messaging/pkg/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func newMessage(user Identity, thread ThreadRef, content string, attachments []string) models.Message {
	message := models.Message{
		Uuid:        uuid.NewString(),
		SenderID:    user.UserID,
		SenderRole:  user.Role,
		Content:     strings.TrimSpace(content),
		Attachments: append([]string{}, attachments...),
	}
	thread.Attach(&message)
	return message
}

func insertMessage(tx *gorm.DB, message *models.Message) error {
	return tx.Omit(clause.Associations).Create(message).Error
}

// touchThread bumps updated_at so listings sort by latest activity.
func touchThread(tx *gorm.DB, thread ThreadRef) error {
	var model any
	switch thread.Kind {
	case ThreadConversation:
		model = &models.Conversation{}
	case ThreadGroup:
		model = &models.Group{}
	case ThreadBroadcast:
		model = &models.Broadcast{}
	default:
		return fmt.Errorf("%w: unknown thread %s", ErrValidation, thread)
	}
	return tx.Model(model).Where("id = ?", thread.ID).Update("updated_at", database.Now()).Error
}

// authorizeConversationPost joins the poster when they are allowed in but not a participant yet.
// Application threads also pull their owning student back in.
func authorizeConversationPost(tx *gorm.DB, user Identity, conversationId uint) error {
	conversation, err := getConversation(tx, conversationId)
	if err != nil {
		return err
	}
	allowed, joined, err := canAccessConversation(tx, user, conversation)
	if err != nil {
		return err
	} else if !allowed {
		return fmt.Errorf("%w: you are not allowed to post in this conversation", ErrForbidden)
	}
	if !joined {
		if _, err := EnsureParticipant(tx, conversation, user.UserID); err != nil {
			return err
		}
	}
	return ensureApplicationOwner(tx, conversation)
}

// ensureApplicationOwner joins the owning student with a watermark at the thread's creation,
// so everything posted before they first open it still counts as unread.
func ensureApplicationOwner(tx *gorm.DB, conversation models.Conversation) error {
	if conversation.ApplicationID == nil {
		return nil
	}
	owner, err := GetApplicationOwner(tx, *conversation.ApplicationID)
	if errors.Is(err, ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	_, err = joinConversation(tx, conversation, owner, conversation.CreatedAt)
	return err
}

func authorizeGroupPost(tx *gorm.DB, user Identity, groupId uint) error {
	if _, err := getGroup(tx, groupId); err != nil {
		return err
	}
	if member, err := isGroupMember(tx, groupId, user.UserID); err != nil {
		return err
	} else if !member {
		return fmt.Errorf("%w: you are not a member of this group", ErrForbidden)
	}
	return nil
}

// AppendMessage posts into any thread kind.
// Broadcast refs go through the fan-out so every recipient gets their copy.
func AppendMessage(user Identity, thread ThreadRef, content string, attachments []string) (models.Message, error) {
	if thread.Kind == ThreadBroadcast {
		return PostBroadcastMessage(user, thread.ID, content, attachments)
	}
	if err := ensureAuthenticated(user); err != nil {
		return models.Message{}, err
	}

	target := thread.String()
	if !models.HasBody(content, attachments) {
		err := fmt.Errorf("%w: message content or attachments required", ErrValidation)
		logFailure("append_message", user, target, err)
		return models.Message{}, err
	}

	message := newMessage(user, thread, content, attachments)
	err := database.C.Transaction(func(tx *gorm.DB) error {
		switch thread.Kind {
		case ThreadConversation:
			if err := authorizeConversationPost(tx, user, thread.ID); err != nil {
				return err
			}
		case ThreadGroup:
			if err := authorizeGroupPost(tx, user, thread.ID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown thread %s", ErrValidation, thread)
		}
		if err := insertMessage(tx, &message); err != nil {
			return err
		}
		return touchThread(tx, thread)
	})
	if err != nil {
		logFailure("append_message", user, target, err)
		return message, err
	}

	return message, nil
}

func GetMessage(tx *gorm.DB, id uint) (models.Message, error) {
	var message models.Message
	if err := tx.First(&message, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message, fmt.Errorf("%w: message #%d", ErrNotFound, id)
		}
		return message, err
	}
	return message, nil
}

// EditMessage rewrites the body of a message, only its sender may do so.
// Broadcast audit copies are immutable since recipients already hold their own copies.
func EditMessage(user Identity, messageId uint, content string, attachments []string) (models.Message, error) {
	if err := ensureAuthenticated(user); err != nil {
		return models.Message{}, err
	}

	target := fmt.Sprintf("message#%d", messageId)

	message, err := GetMessage(database.C, messageId)
	if err != nil {
		logFailure("edit_message", user, target, err)
		return message, err
	}

	thread, err := ThreadOf(message)
	if err != nil {
		logFailure("edit_message", user, target, err)
		return message, err
	}

	if message.SenderID != user.UserID {
		err = fmt.Errorf("%w: you can only edit your own messages", ErrForbidden)
	} else if thread.Kind == ThreadBroadcast {
		err = fmt.Errorf("%w: broadcast history cannot be edited", ErrValidation)
	} else if !models.HasBody(content, attachments) {
		err = fmt.Errorf("%w: message content or attachments required", ErrValidation)
	}
	if err != nil {
		logFailure("edit_message", user, target, err)
		return message, err
	}

	editedAt := database.Now()
	message.Content = strings.TrimSpace(content)
	message.Attachments = append([]string{}, attachments...)
	message.EditedAt = &editedAt

	if err := database.C.Omit(clause.Associations).Save(&message).Error; err != nil {
		logFailure("edit_message", user, target, err)
		return message, err
	}

	return message, nil
}
