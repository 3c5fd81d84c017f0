package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noah-isme/report-card-api/pkg/config"
	"github.com/noah-isme/report-card-api/pkg/database"
	"github.com/noah-isme/report-card-api/pkg/logger"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down|status]")
	}
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		command = "up"
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	migrator := database.NewMigrator(db)
	switch command {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			logr.Sugar().Fatalw("migration failed", "error", err)
		}
		logr.Sugar().Infow("migrations applied", "count", applied)
	case "down":
		if err := migrator.Down(ctx); err != nil {
			logr.Sugar().Fatalw("rollback failed", "error", err)
		}
		logr.Info("last migration reverted")
	case "status":
		migrations, err := migrator.Status(ctx)
		if err != nil {
			logr.Sugar().Fatalw("status failed", "error", err)
		}
		for _, m := range migrations {
			state := "pending"
			if m.IsApplied {
				state = "applied " + m.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%03d %-32s %s\n", m.Version, m.Name, state)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
