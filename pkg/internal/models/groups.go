package models

import "time"

type Group struct {
	BaseModel

	Name      string        `json:"name"`
	CreatedBy uint          `json:"created_by" gorm:"index"`
	Members   []GroupMember `json:"members,omitempty"`
	Messages  []Message     `json:"messages,omitempty"`
}

type GroupMember struct {
	GroupID   uint      `json:"group_id" gorm:"primaryKey;autoIncrement:false"`
	UserID    uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `json:"created_at"`
}
