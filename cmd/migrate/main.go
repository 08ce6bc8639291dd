package main

import (
	"log"

	"squares/internal/config"
	"squares/internal/db"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := db.MigrateUp(cfg.DatabaseURL, db.MigrationsDir); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	log.Println("database migrations applied")
}
