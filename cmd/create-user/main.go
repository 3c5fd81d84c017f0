package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noah-isme/report-card-api/internal/repository"
	"github.com/noah-isme/report-card-api/internal/service"
	"github.com/noah-isme/report-card-api/pkg/config"
	"github.com/noah-isme/report-card-api/pkg/database"
	"github.com/noah-isme/report-card-api/pkg/logger"
)

func main() {
	email := flag.String("email", "", "login email")
	name := flag.String("name", "", "display name")
	password := flag.String("password", "", "password, at least 8 characters")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *name == "" {
		*name = *email
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	auth := service.NewAuthService(repository.NewUserRepository(db), service.NewValidator(), logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	user, err := auth.CreateUser(ctx, service.CreateUserRequest{Email: *email, FullName: *name, Password: *password})
	if err != nil {
		logr.Sugar().Fatalw("failed to create user", "email", *email, "error", err)
	}
	fmt.Printf("created user %s (%s)\n", user.Email, user.ID)
}
