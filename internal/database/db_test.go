package database

import (
	"testing"

	"gorm.io/gorm"

	"github.com/openbiolabs/noderepo/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("expected health query to succeed: %v", err)
	}
}

func TestNormalizeDriverAcceptsAliases(t *testing.T) {
	cases := map[string]string{
		"":           "sqlite",
		"sqlite":     "sqlite",
		"SQLite3":    "sqlite",
		"postgres":   "postgres",
		"PostgreSQL": "postgres",
		"mysql":      "mysql",
		"mariadb":    "mysql",
		" mariadb ":  "mysql",
		"oracle":     "oracle",
	}
	for alias, want := range cases {
		if got := normalizeDriver(alias); got != want {
			t.Fatalf("normalizeDriver(%q) = %q, want %q", alias, got, want)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestAutoMigrateAndSeedData(t *testing.T) {
	db := openTestDB(t)

	if err := AutoMigrateAndSeed(db); err != nil {
		t.Fatalf("auto migrate and seed failed: %v", err)
	}

	var public models.UserGroup
	if err := db.First(&public, "name = ?", models.PublicGroupName).Error; err != nil {
		t.Fatalf("expected public group to be seeded: %v", err)
	}
	if !public.IsPublic {
		t.Fatal("expected seeded group to be marked public")
	}

	var admin models.User
	if err := db.First(&admin, "username = ?", "admin").Error; err != nil {
		t.Fatalf("expected admin user to be seeded: %v", err)
	}
	if !admin.IsAdmin {
		t.Fatal("expected seeded admin to carry the admin flag")
	}
}

func TestSeedDataIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := AutoMigrateAndSeed(db); err != nil {
		t.Fatalf("first seed failed: %v", err)
	}
	if err := SeedData(db); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}

	var count int64
	if err := db.Model(&models.UserGroup{}).Where("is_public = ?", true).Count(&count).Error; err != nil {
		t.Fatalf("count public groups: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one public group, got %d", count)
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
