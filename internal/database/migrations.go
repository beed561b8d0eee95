package database

import (
	"errors"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openbiolabs/noderepo/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserGroup{},
		&models.ResourceAccess{},
		&models.Node{},
		&models.NodeAnnotations{},
		&models.NodeRevision{},
	)
}

// SeedData populates the public group and a bootstrap administrator.
func SeedData(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	public := models.UserGroup{
		Name:     models.PublicGroupName,
		IsPublic: true,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&public).Error; err != nil {
		return err
	}

	password := os.Getenv("NODEREPO_ADMIN_PASSWORD")
	if password == "" {
		password = "admin"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		Username:    "admin",
		Email:       "admin@localhost",
		Password:    string(hash),
		DisplayName: "Administrator",
		IsAdmin:     true,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoNothing: true,
	}).Create(&admin).Error
}
