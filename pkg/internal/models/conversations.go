package models

import (
	"fmt"
	"time"
)

type Conversation struct {
	BaseModel

	ApplicationID *uint   `json:"application_id" gorm:"uniqueIndex"`
	DirectKey     *string `json:"-" gorm:"uniqueIndex;size:64"`
	Subject       *string `json:"subject"`

	Participants []ConversationParticipant `json:"participants,omitempty"`
	Messages     []Message                 `json:"messages,omitempty"`
}

// IsDirect reports whether the conversation is an ad-hoc 1:1 thread between exactly two users.
func (v Conversation) IsDirect() bool {
	return v.ApplicationID == nil && v.DirectKey != nil
}

// DirectPairKey is the normalized unordered key of a pair of users.
func DirectPairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// ConversationParticipant carries the coarse read watermark of a user.
// Fine-grained per-message state lives in ReadReceipt, the two are never synchronized.
type ConversationParticipant struct {
	ConversationID uint      `json:"conversation_id" gorm:"primaryKey;autoIncrement:false"`
	UserID         uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false;index"`
	LastRead       time.Time `json:"last_read"`
	CreatedAt      time.Time `json:"created_at"`
}
