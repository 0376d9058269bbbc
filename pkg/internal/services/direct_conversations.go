package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/edvisory/portal-messaging/pkg/internal/database"
	"github.com/edvisory/portal-messaging/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// createConversation inserts the conversation and its initial participants inside a savepoint.
// A unique violation means a concurrent caller created the same thread first,
// in that case the row matched by lookup is returned instead.
func createConversation(tx *gorm.DB, conversation models.Conversation, participants []uint, lookup func(*gorm.DB) *gorm.DB) (models.Conversation, error) {
	err := tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&conversation).Error; err != nil {
			return err
		}
		rows := lo.Map(participants, func(item uint, _ int) models.ConversationParticipant {
			return models.ConversationParticipant{
				ConversationID: conversation.ID,
				UserID:         item,
				LastRead:       conversation.CreatedAt,
			}
		})
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
	if err == nil {
		return conversation, nil
	} else if !database.IsUniqueViolation(err) {
		return conversation, err
	}

	log.Debug().Err(err).Msg("Conversation was created concurrently, fetching the existing one...")

	var existing models.Conversation
	if err := lookup(tx).First(&existing).Error; err != nil {
		return existing, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return existing, nil
}

func hasExactParticipants(conversation models.Conversation, users ...uint) bool {
	ids := lo.Map(conversation.Participants, func(item models.ConversationParticipant, _ int) uint {
		return item.UserID
	})
	return len(ids) == len(users) && lo.Every(ids, users)
}

// FindOrCreateDirectConversation returns the ad-hoc thread whose participant set is exactly {a, b}.
// The pair key is released when a thread drifted to a larger roster, so the pair gets a new thread.
func FindOrCreateDirectConversation(tx *gorm.DB, a, b uint) (models.Conversation, error) {
	if a == b {
		return models.Conversation{}, fmt.Errorf("%w: direct conversation needs two different users", ErrValidation)
	}

	key := models.DirectPairKey(a, b)
	lookup := func(tx *gorm.DB) *gorm.DB {
		return tx.Where("direct_key = ? AND application_id IS NULL", key)
	}

	var conversation models.Conversation
	if err := lookup(tx).Preload("Participants").First(&conversation).Error; err == nil {
		if hasExactParticipants(conversation, a, b) {
			return conversation, nil
		}
		if err := releaseDirectKey(tx, conversation.ID); err != nil {
			return conversation, err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return conversation, err
	}

	return createConversation(tx, models.Conversation{DirectKey: &key}, []uint{a, b}, lookup)
}

func releaseDirectKey(tx *gorm.DB, conversationId uint) error {
	return tx.Model(&models.Conversation{}).
		Where("id = ?", conversationId).
		Update("direct_key", nil).Error
}

// EnsureParticipant joins the user to the conversation if they are not in it yet.
func EnsureParticipant(tx *gorm.DB, conversation models.Conversation, userId uint) (bool, error) {
	return joinConversation(tx, conversation, userId, database.Now())
}

// joinConversation adds a participant whose watermark starts at lastRead.
func joinConversation(tx *gorm.DB, conversation models.Conversation, userId uint, lastRead time.Time) (bool, error) {
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ConversationParticipant{
		ConversationID: conversation.ID,
		UserID:         userId,
		LastRead:       lastRead,
	})
	if result.Error != nil {
		return false, result.Error
	}

	joined := result.RowsAffected > 0
	if joined && conversation.DirectKey != nil {
		if err := releaseDirectKey(tx, conversation.ID); err != nil {
			return joined, err
		}
	}
	return joined, nil
}

func GetOrCreateDirectConversation(user Identity, otherId uint) (models.Conversation, error) {
	if err := ensureAuthenticated(user); err != nil {
		return models.Conversation{}, err
	}

	var conversation models.Conversation
	err := database.C.Transaction(func(tx *gorm.DB) error {
		var err error
		conversation, err = FindOrCreateDirectConversation(tx, user.UserID, otherId)
		return err
	})
	if err != nil {
		logFailure("get_or_create_direct_conversation", user, fmt.Sprintf("user#%d", otherId), err)
		return conversation, err
	}

	return loadConversationThread(database.C, conversation.ID)
}
