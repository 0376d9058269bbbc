package models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrMessageTarget = errors.New("message must belong to exactly one of conversation, group or broadcast")
	ErrMessageEmpty  = errors.New("message must have content or attachments")
)

type Message struct {
	BaseModel

	Uuid             string                      `json:"uuid" gorm:"uniqueIndex;size:36"`
	ConversationID   *uint                       `json:"conversation_id,omitempty" gorm:"index"`
	GroupID          *uint                       `json:"group_id,omitempty" gorm:"index"`
	BroadcastID      *uint                       `json:"broadcast_id,omitempty" gorm:"index"`
	SenderID         uint                        `json:"sender_id" gorm:"index"`
	SenderRole       string                      `json:"sender_role"`
	Content          string                      `json:"content"`
	Attachments      datatypes.JSONSlice[string] `json:"attachments"`
	RelatedMessageID *uint                       `json:"related_message_id,omitempty"`
	EditedAt         *time.Time                  `json:"edited_at"`

	ReadReceipts []ReadReceipt `json:"read_receipts,omitempty"`
}

// HasBody checks the content invariant, whitespace-only content does not count.
func HasBody(content string, attachments []string) bool {
	return len(strings.TrimSpace(content)) > 0 || len(attachments) > 0
}

func (v *Message) targets() int {
	count := 0
	for _, id := range []*uint{v.ConversationID, v.GroupID, v.BroadcastID} {
		if id != nil {
			count++
		}
	}
	return count
}

func (v *Message) BeforeSave(tx *gorm.DB) error {
	if v.targets() != 1 {
		return ErrMessageTarget
	}
	if !HasBody(v.Content, v.Attachments) {
		return ErrMessageEmpty
	}
	return nil
}

type ReadReceipt struct {
	MessageID uint      `json:"message_id" gorm:"primaryKey;autoIncrement:false"`
	UserID    uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false;index"`
	ReadAt    time.Time `json:"read_at"`
}
