// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/assacalos/megvie/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a fresh in-memory SQLite database with every table migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// every connection to ":memory:" is its own database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Password is the clear-text password of every user created by CreateUser.
const Password = "password"

var passwordHash []byte

// CreateUser inserts a user with the given role; mutate tweaks it before insert.
func CreateUser(t *testing.T, db *gorm.DB, role model.Role, email string, mutate ...func(*model.User)) *model.User {
	t.Helper()
	if passwordHash == nil {
		h, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		passwordHash = h
	}
	u := &model.User{Name: email, Email: email, Password: string(passwordHash), Role: role}
	for _, m := range mutate {
		m(u)
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateMember inserts a member; created_at is spaced so ordering is deterministic.
func CreateMember(t *testing.T, db *gorm.DB, nom string, mutate ...func(*model.Member)) *model.Member {
	t.Helper()
	var n int64
	db.Model(&model.Member{}).Count(&n)
	m := &model.Member{
		Nom:       nom,
		Prenoms:   "Test",
		Statut:    model.StatusNouvelAme,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute),
	}
	for _, fn := range mutate {
		fn(m)
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("create member: %v", err)
	}
	return m
}

func Ptr[T any](v T) *T { return &v }
