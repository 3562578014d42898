package repository

import (
	"context"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"dirsync/internal/domain/identity"
	"dirsync/internal/infrastructure/persistence/schema"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "dirsync.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := schema.MigratePrimary(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testAccount(id string, username string, email string) identity.Account {
	return identity.Account{
		ID:          uuid.MustParse(id),
		Username:    username,
		Email:       email,
		DisplayName: "Display " + username,
		Company:     "ACME",
	}
}

const (
	idAlice = "11111111-1111-1111-1111-111111111111"
	idBob   = "22222222-2222-2222-2222-222222222222"
	idCarol = "33333333-3333-3333-3333-333333333333"
)
