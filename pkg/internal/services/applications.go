package services

import (
	"errors"
	"fmt"

	"github.com/edvisory/portal-messaging/pkg/internal/models"
	"gorm.io/gorm"
)

func GetApplicationOwner(tx *gorm.DB, applicationId uint) (uint, error) {
	var application models.Application
	if err := tx.Select("id", "student_id").First(&application, applicationId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: application #%d", ErrNotFound, applicationId)
		}
		return 0, err
	}
	return application.StudentID, nil
}
