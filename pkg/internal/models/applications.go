package models

// Application is owned by the portal's application module.
// The messaging core only reads it to resolve who the owning student is.
type Application struct {
	BaseModel

	StudentID uint `json:"student_id" gorm:"index"`
}

// TableName keeps the shared table name regardless of the messaging table prefix.
func (Application) TableName() string {
	return "applications"
}
