package services

import (
	"fmt"
	"slices"
	"time"

	"github.com/edvisory/portal-messaging/pkg/internal/database"
	"github.com/edvisory/portal-messaging/pkg/internal/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Read state is tracked twice and the two are never reconciled.
//
// ConversationParticipant.LastRead is the coarse watermark, it alone drives unread counts
// and is advanced by UpdateLastRead whenever the user opens the thread.
// ReadReceipt is per message and only feeds "seen by" displays, MarkConversationRead
// writes receipts without moving the watermark. A user may therefore have receipts for
// every message and still see a non-zero unread count until they open the thread.

const receiptBatchSize = 500

// UnreadFilter narrows the count by the role the sender had when posting.
// An empty filter counts everything.
type UnreadFilter struct {
	IncludeRoles []string
	ExcludeRoles []string
}

type ConversationUnread struct {
	ConversationID uint      `json:"conversation_id"`
	Count          int64     `json:"count"`
	LatestAt       time.Time `json:"latest_at"`
}

type unreadRow struct {
	ConversationID uint
	CreatedAt      time.Time
}

type UnreadSummary struct {
	Count         int64                `json:"count"`
	LatestAt      *time.Time           `json:"latest_at"`
	Conversations []ConversationUnread `json:"conversations"`
}

func GetUnreadCount(userId uint, filter UnreadFilter) (UnreadSummary, error) {
	summary := UnreadSummary{Conversations: []ConversationUnread{}}
	if userId == 0 {
		return summary, ErrNotAuthenticated
	}

	tx := database.C.
		Table(database.TableName(database.C, &models.Message{})+" m").
		Joins(fmt.Sprintf(
			"JOIN %s cp ON cp.conversation_id = m.conversation_id",
			database.TableName(database.C, &models.ConversationParticipant{}),
		)).
		Select("m.conversation_id, m.created_at").
		Where("cp.user_id = ? AND m.sender_id <> ? AND m.created_at > cp.last_read", userId, userId)
	if len(filter.IncludeRoles) > 0 {
		tx = tx.Where("m.sender_role IN ?", filter.IncludeRoles)
	}
	if len(filter.ExcludeRoles) > 0 {
		tx = tx.Where("m.sender_role NOT IN ?", filter.ExcludeRoles)
	}

	var rows []unreadRow
	if err := tx.Scan(&rows).Error; err != nil {
		logFailure("get_unread_count", Identity{UserID: userId}, "unread", err)
		return summary, err
	}

	grouped := lo.GroupBy(rows, func(item unreadRow) uint {
		return item.ConversationID
	})
	for conversationId, items := range grouped {
		entry := ConversationUnread{ConversationID: conversationId, Count: int64(len(items))}
		for _, item := range items {
			if item.CreatedAt.After(entry.LatestAt) {
				entry.LatestAt = item.CreatedAt
			}
		}
		summary.Count += entry.Count
		if summary.LatestAt == nil || entry.LatestAt.After(*summary.LatestAt) {
			summary.LatestAt = lo.ToPtr(entry.LatestAt)
		}
		summary.Conversations = append(summary.Conversations, entry)
	}

	slices.SortFunc(summary.Conversations, func(a, b ConversationUnread) int {
		return b.LatestAt.Compare(a.LatestAt)
	})

	return summary, nil
}

// UpdateLastRead moves the user's watermark in the conversation to now.
// The watermark never moves backwards.
func UpdateLastRead(tx *gorm.DB, conversationId, userId uint) error {
	now := database.Now()
	return tx.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ? AND last_read < ?", conversationId, userId, now).
		Update("last_read", now).Error
}

func upsertReceipts(tx *gorm.DB, userId uint, messageIds []uint) error {
	if len(messageIds) == 0 {
		return nil
	}
	now := database.Now()
	receipts := lo.Map(messageIds, func(item uint, _ int) models.ReadReceipt {
		return models.ReadReceipt{MessageID: item, UserID: userId, ReadAt: now}
	})
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"read_at"}),
	}).CreateInBatches(&receipts, receiptBatchSize).Error
}

func unreadMessageIds(tx *gorm.DB, column string, threadId, userId uint) ([]uint, error) {
	var ids []uint
	if err := tx.Model(&models.Message{}).
		Where(column+" = ? AND sender_id <> ?", threadId, userId).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkConversationRead records a receipt for every message the user did not author.
// Marking twice keeps a single receipt per message and only refreshes read_at.
// It does not touch the unread watermark.
func MarkConversationRead(user Identity, conversationId uint) (int, error) {
	if err := ensureAuthenticated(user); err != nil {
		return 0, err
	}

	target := ConversationRef(conversationId).String()

	var marked int
	err := database.C.Transaction(func(tx *gorm.DB) error {
		conversation, err := getConversation(tx, conversationId)
		if err != nil {
			return err
		}
		if allowed, _, err := canAccessConversation(tx, user, conversation); err != nil {
			return err
		} else if !allowed {
			return fmt.Errorf("%w: you are not a participant of this conversation", ErrForbidden)
		}
		ids, err := unreadMessageIds(tx, "conversation_id", conversation.ID, user.UserID)
		if err != nil {
			return err
		}
		marked = len(ids)
		return upsertReceipts(tx, user.UserID, ids)
	})
	if err != nil {
		logFailure("mark_conversation_read", user, target, err)
		return 0, err
	}

	return marked, nil
}

func MarkGroupRead(user Identity, groupId uint) (int, error) {
	if err := ensureAuthenticated(user); err != nil {
		return 0, err
	}

	target := GroupRef(groupId).String()

	var marked int
	err := database.C.Transaction(func(tx *gorm.DB) error {
		group, err := authorizeGroupRead(tx, user, groupId)
		if err != nil {
			return err
		}
		ids, err := unreadMessageIds(tx, "group_id", group.ID, user.UserID)
		if err != nil {
			return err
		}
		marked = len(ids)
		return upsertReceipts(tx, user.UserID, ids)
	})
	if err != nil {
		logFailure("mark_group_read", user, target, err)
		return 0, err
	}

	return marked, nil
}
