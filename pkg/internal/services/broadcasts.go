package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/edvisory/portal-messaging/pkg/internal/database"
	"github.com/edvisory/portal-messaging/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BroadcastSummary struct {
	models.Broadcast

	RecipientCount *int64 `json:"recipient_count,omitempty"`
	IsRecipient    bool   `json:"is_recipient"`
}

func getBroadcast(tx *gorm.DB, id uint) (models.Broadcast, error) {
	var broadcast models.Broadcast
	if err := tx.First(&broadcast, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return broadcast, fmt.Errorf("%w: broadcast #%d", ErrNotFound, id)
		}
		return broadcast, err
	}
	return broadcast, nil
}

func getManagedBroadcast(tx *gorm.DB, user Identity, id uint) (models.Broadcast, error) {
	broadcast, err := getBroadcast(tx, id)
	if err != nil {
		return broadcast, err
	} else if !CanManageThread(user, broadcast.CreatedBy) {
		return broadcast, fmt.Errorf("%w: only the broadcast creator can do this", ErrForbidden)
	}
	return broadcast, nil
}

func listRecipientIds(tx *gorm.DB, broadcastId uint) ([]uint, error) {
	var ids []uint
	if err := tx.Model(&models.BroadcastRecipient{}).
		Where("broadcast_id = ?", broadcastId).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// insertRecipients skips users already on the list and returns the ones actually added.
func insertRecipients(tx *gorm.DB, broadcastId uint, userIds []uint) ([]uint, error) {
	current, err := listRecipientIds(tx, broadcastId)
	if err != nil {
		return nil, err
	}
	added, _ := lo.Difference(lo.Without(lo.Uniq(userIds), 0), current)
	if len(added) == 0 {
		return nil, nil
	}
	rows := lo.Map(added, func(item uint, _ int) models.BroadcastRecipient {
		return models.BroadcastRecipient{BroadcastID: broadcastId, UserID: item}
	})
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return nil, err
	}
	return added, nil
}

// CreateBroadcast stores the broadcast first and its recipient list second.
// When the second step fails the broadcast is kept and returned along with the error,
// the caller can retry with AddRecipients.
func CreateBroadcast(user Identity, name string, recipientIds []uint) (models.Broadcast, error) {
	if err := ensureAuthenticated(user); err != nil {
		return models.Broadcast{}, err
	}

	name = strings.TrimSpace(name)
	recipients := lo.Without(lo.Uniq(recipientIds), 0)

	var err error
	if IsStudent(user.Role) {
		err = fmt.Errorf("%w: students cannot create broadcasts", ErrForbidden)
	} else if len(name) == 0 {
		err = fmt.Errorf("%w: broadcast name is required", ErrValidation)
	} else if len(recipients) == 0 {
		err = fmt.Errorf("%w: broadcast needs at least one recipient", ErrValidation)
	}
	if err != nil {
		logFailure("create_broadcast", user, "broadcasts", err)
		return models.Broadcast{}, err
	}

	broadcast := models.Broadcast{Name: name, CreatedBy: user.UserID}
	if err := database.C.Omit(clause.Associations).Create(&broadcast).Error; err != nil {
		logFailure("create_broadcast", user, "broadcasts", err)
		return broadcast, err
	}

	target := BroadcastRef(broadcast.ID).String()
	if _, err := insertRecipients(database.C, broadcast.ID, recipients); err != nil {
		err = fmt.Errorf("broadcast created but recipients were not saved: %w", err)
		logFailure("create_broadcast", user, target, err)
		return broadcast, err
	}

	broadcast.Recipients = lo.Map(recipients, func(item uint, _ int) models.BroadcastRecipient {
		return models.BroadcastRecipient{BroadcastID: broadcast.ID, UserID: item}
	})
	return broadcast, nil
}

func AddRecipients(user Identity, broadcastId uint, recipientIds []uint) ([]uint, error) {
	if err := ensureAuthenticated(user); err != nil {
		return nil, err
	}

	target := BroadcastRef(broadcastId).String()

	var added []uint
	err := database.C.Transaction(func(tx *gorm.DB) error {
		broadcast, err := getManagedBroadcast(tx, user, broadcastId)
		if err != nil {
			return err
		}
		if added, err = insertRecipients(tx, broadcast.ID, recipientIds); err != nil {
			return err
		} else if len(added) == 0 {
			return ErrNoOp
		}
		return nil
	})
	if err != nil {
		logFailure("add_broadcast_recipients", user, target, err)
		return nil, err
	}

	return added, nil
}

// PostBroadcastMessage stores the audit copy and delivers a private copy to every recipient
// through the direct conversation between them and the sender.
// Either every copy is written or none is.
func PostBroadcastMessage(user Identity, broadcastId uint, content string, attachments []string) (models.Message, error) {
	if err := ensureAuthenticated(user); err != nil {
		return models.Message{}, err
	}

	target := BroadcastRef(broadcastId).String()

	var audit models.Message
	err := database.C.Transaction(func(tx *gorm.DB) error {
		broadcast, err := getManagedBroadcast(tx, user, broadcastId)
		if err != nil {
			return err
		}
		if !models.HasBody(content, attachments) {
			return fmt.Errorf("%w: message content or attachments required", ErrValidation)
		}

		audit = newMessage(user, BroadcastRef(broadcast.ID), content, attachments)
		if err := insertMessage(tx, &audit); err != nil {
			return fmt.Errorf("%w: unable to store broadcast history: %v", ErrTransaction, err)
		}

		recipients, err := listRecipientIds(tx, broadcast.ID)
		if err != nil {
			return fmt.Errorf("%w: unable to load recipients: %v", ErrTransaction, err)
		}

		for _, recipient := range lo.Without(recipients, user.UserID) {
			conversation, err := FindOrCreateDirectConversation(tx, user.UserID, recipient)
			if err != nil {
				return fmt.Errorf("%w: unable to open conversation with user #%d: %v", ErrTransaction, recipient, err)
			}
			thread := ConversationRef(conversation.ID)
			message := newMessage(user, thread, content, attachments)
			message.RelatedMessageID = &audit.ID
			if err := insertMessage(tx, &message); err != nil {
				return fmt.Errorf("%w: unable to deliver to user #%d: %v", ErrTransaction, recipient, err)
			}
			if err := touchThread(tx, thread); err != nil {
				return fmt.Errorf("%w: %v", ErrTransaction, err)
			}
		}

		if err := touchThread(tx, BroadcastRef(broadcast.ID)); err != nil {
			return fmt.Errorf("%w: %v", ErrTransaction, err)
		}

		log.Debug().
			Uint("broadcast", broadcast.ID).
			Int("recipients", len(recipients)).
			Msg("Broadcast message delivered to recipients...")
		return nil
	})
	if err != nil {
		logFailure("post_broadcast_message", user, target, err)
		return audit, err
	}

	return audit, nil
}

func ListBroadcasts(user Identity) ([]BroadcastSummary, error) {
	if err := ensureAuthenticated(user); err != nil {
		return nil, err
	}

	received := func() *gorm.DB {
		return database.C.
			Model(&models.BroadcastRecipient{}).
			Where("user_id = ?", user.UserID)
	}

	tx := database.C
	if !IsMessagingAdmin(user.Role) {
		tx = tx.Where("created_by = ? OR id IN (?)", user.UserID, received().Select("broadcast_id"))
	}

	var broadcasts []models.Broadcast
	if err := tx.Order("updated_at DESC, id DESC").Find(&broadcasts).Error; err != nil {
		logFailure("list_broadcasts", user, "broadcasts", err)
		return nil, err
	}

	var receiving []uint
	if err := received().Pluck("broadcast_id", &receiving).Error; err != nil {
		logFailure("list_broadcasts", user, "broadcasts", err)
		return nil, err
	}

	managed := lo.FilterMap(broadcasts, func(item models.Broadcast, _ int) (uint, bool) {
		return item.ID, CanManageThread(user, item.CreatedBy)
	})
	var recipients []models.BroadcastRecipient
	if len(managed) > 0 {
		if err := database.C.
			Where("broadcast_id IN ?", managed).
			Order("user_id ASC").
			Find(&recipients).Error; err != nil {
			logFailure("list_broadcasts", user, "broadcasts", err)
			return nil, err
		}
	}
	grouped := lo.GroupBy(recipients, func(item models.BroadcastRecipient) uint {
		return item.BroadcastID
	})

	return lo.Map(broadcasts, func(item models.Broadcast, _ int) BroadcastSummary {
		summary := BroadcastSummary{
			Broadcast:   item,
			IsRecipient: lo.Contains(receiving, item.ID),
		}
		if CanManageThread(user, item.CreatedBy) {
			summary.Recipients = grouped[item.ID]
			summary.RecipientCount = lo.ToPtr(int64(len(grouped[item.ID])))
		}
		return summary
	}), nil
}

// ListBroadcastMessages returns the audit history, recipients read their copies in conversations.
func ListBroadcastMessages(user Identity, broadcastId uint) ([]models.Message, error) {
	if err := ensureAuthenticated(user); err != nil {
		return nil, err
	}

	target := BroadcastRef(broadcastId).String()

	if _, err := getManagedBroadcast(database.C, user, broadcastId); err != nil {
		logFailure("list_broadcast_messages", user, target, err)
		return nil, err
	}

	var messages []models.Message
	if err := database.C.
		Where("broadcast_id = ?", broadcastId).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		logFailure("list_broadcast_messages", user, target, err)
		return nil, err
	}

	return messages, nil
}
