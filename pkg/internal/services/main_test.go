package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/edvisory/portal-messaging/pkg/internal/database"
	"github.com/edvisory/portal-messaging/pkg/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	student    = Identity{UserID: 1, Role: RoleStudent}
	counselor  = Identity{UserID: 2, Role: RoleCounselor}
	admin      = Identity{UserID: 3, Role: RoleAdmin}
	other      = Identity{UserID: 4, Role: RoleStudent}
	accountant = Identity{UserID: 5, Role: RoleAccountant}
)

// setupStore points database.C at a fresh in-memory store for one test.
func setupStore(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), database.NewConfig("", false))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.RunMigration(db))
	require.NoError(t, db.AutoMigrate(&models.Application{}))

	previous := database.C
	database.C = db
	t.Cleanup(func() { database.C = previous })

	return db
}

func seedApplication(t *testing.T, studentId uint) models.Application {
	t.Helper()
	application := models.Application{StudentID: studentId}
	require.NoError(t, database.C.Create(&application).Error)
	return application
}
