// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/abdojat/fbcloneapi/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory sqlite database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// every pooled connection to :memory: would otherwise see its own empty database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedUsers creates users named user1..userN and returns them in order.
func SeedUsers(t testing.TB, db *gorm.DB, n int) []models.User {
	t.Helper()

	users := make([]models.User, n)
	if n == 0 {
		return users
	}
	for i := range users {
		users[i] = models.User{
			FirstName: fmt.Sprintf("First%d", i+1),
			LastName:  fmt.Sprintf("Last%d", i+1),
			Username:  fmt.Sprintf("user%d", i+1),
			Email:     fmt.Sprintf("user%d@example.com", i+1),
			Password:  "hashed",
		}
	}
	if err := db.Create(&users).Error; err != nil {
		t.Fatalf("seed users: %v", err)
	}
	return users
}
