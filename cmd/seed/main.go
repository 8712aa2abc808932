// Command seed creates a verified admin account from environment variables so
// a fresh deployment has a first login without going through the OTP flow.
package main

import (
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"messmate/internal/config"
	"messmate/internal/db"
	"messmate/internal/model"
)

func main() {
	cfg := config.Load()

	email := strings.ToLower(strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL")))
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	name := os.Getenv("SEED_ADMIN_NAME")
	if name == "" {
		name = "Admin"
	}
	if email == "" || password == "" {
		log.Fatal("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD are required")
	}
	if len(password) < 8 {
		log.Fatal("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}
	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	var existing model.User
	err = gormDB.Where("email = ?", email).First(&existing).Error
	if err == nil {
		log.Printf("admin %s already exists (id=%d), nothing to do", email, existing.ID)
		return
	}
	if err != gorm.ErrRecordNotFound {
		log.Fatalf("lookup admin: %v", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	admin := model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
		Role:         model.RoleAdmin,
		IsVerified:   true,
		IsActive:     true,
	}
	if err := gormDB.Create(&admin).Error; err != nil {
		log.Fatalf("create admin: %v", err)
	}

	log.Printf("admin %s created (id=%d)", email, admin.ID)
}
