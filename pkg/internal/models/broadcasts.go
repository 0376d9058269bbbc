package models

import "time"

type Broadcast struct {
	BaseModel

	Name       string               `json:"name"`
	CreatedBy  uint                 `json:"created_by" gorm:"index"`
	Recipients []BroadcastRecipient `json:"recipients,omitempty"`
	Messages   []Message            `json:"messages,omitempty"`
}

type BroadcastRecipient struct {
	BroadcastID uint      `json:"broadcast_id" gorm:"primaryKey;autoIncrement:false"`
	UserID      uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt   time.Time `json:"created_at"`
}
