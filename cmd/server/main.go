package main

import (
	"log"
	"net/http"
	"os"

	_ "messmate/docs" // swagger docs

	"github.com/labstack/echo/v4"

	"messmate/internal/auth"
	"messmate/internal/cache"
	"messmate/internal/config"
	"messmate/internal/db"
	"messmate/internal/handler"
	"messmate/internal/mailer"
	"messmate/internal/model"
	"messmate/internal/otp"
	"messmate/internal/queue"
	"messmate/internal/repository"
	"messmate/internal/router"
	"messmate/internal/service"
)

// @title MessMate Auth API
// @version 1.0
// @description Account registration, email OTP verification, login and password recovery.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	e := echo.New()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	// Drop tables if RESET_DB environment variable is set
	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, dropping all tables...")
		if err := gormDB.Migrator().DropTable(&model.User{}); err != nil {
			log.Printf("Warning: Failed to drop table (may not exist): %v", err)
		}
	}

	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	userRepo := repository.NewUserRepository(gormDB)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	limiter := auth.NewRateLimiter(cacheClient, cfg.ResendCooldown, cfg.OTPTTL, cfg.OTPMaxAttempts)

	mail := mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom, cfg.MailFromName)

	producer := queue.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic)
	defer producer.Close()

	authService := service.NewAuthService(
		userRepo,
		otp.NewGenerator(cfg.OTPTTL),
		jwtService,
		limiter,
		mail,
		producer,
		cacheClient,
		cfg.BcryptCost,
	)

	authHandler := handler.NewAuthHandler(authService)

	router.Register(e, cfg, authService, authHandler)

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
