package database

import (
	"github.com/edvisory/portal-messaging/pkg/internal/models"
	"gorm.io/gorm"
)

var AutoMaintainRange = []any{
	&models.Conversation{},
	&models.ConversationParticipant{},
	&models.Group{},
	&models.GroupMember{},
	&models.Broadcast{},
	&models.BroadcastRecipient{},
	&models.Message{},
	&models.ReadReceipt{},
}

func RunMigration(source *gorm.DB) error {
	if err := source.AutoMigrate(AutoMaintainRange...); err != nil {
		return err
	}

	return nil
}
