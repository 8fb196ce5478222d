package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/otp-auth-api/internal/application/user"
	"github.com/otp-auth-api/internal/config"
	"github.com/otp-auth-api/internal/infrastructure/dynamo"
	"github.com/otp-auth-api/internal/infrastructure/smtp"
	"github.com/otp-auth-api/internal/infrastructure/sns"
	"github.com/otp-auth-api/internal/infrastructure/token"
	transporthttp "github.com/otp-auth-api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(cfg)
	if err != nil {
		log.Fatalf("dynamodb client: %v", err)
	}
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	tokenProvider := token.NewProvider(cfg)

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender is optional; SMS delivery is skipped when unavailable.
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)

	seed(context.Background(), userRepo, cfg)

	deps := &transporthttp.Deps{
		UserRepo:      userRepo,
		SessionRepo:   dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		OtpRepo:       dynamo.NewOtpRepo(dynamoClient, cfg.DynamoTables.OtpCodes),
		Mailer:        mailer,
		SMSSender:     smsSender,
		TokenProvider: tokenProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// seed provisions the admin account named by SEED_USER_EMAIL and reconciles
// stored roles. Failures are logged, never fatal: the service still serves
// logins without a seed admin.
func seed(ctx context.Context, userRepo *dynamo.UserRepo, cfg *config.Config) {
	userSvc := user.NewService(userRepo, nil, user.Config{
		SeedEmail:            cfg.SeedEmail,
		SeedFirstName:        cfg.SeedFirstName,
		SeedLastName:         cfg.SeedLastName,
		RequireOnboardingOTP: cfg.RequireOnboardingOTP,
	})
	if cfg.SeedEmail != "" {
		if _, _, err := userSvc.EnsureForIdentifier(ctx, cfg.SeedEmail); err != nil {
			log.Printf("WARN: seed admin not provisioned: %v", err)
		}
	}
	if err := userSvc.EnsureRoles(ctx); err != nil {
		log.Printf("WARN: role reconciliation failed: %v", err)
	}
}
