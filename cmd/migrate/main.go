package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/compactconnect/apps/edge/internal/report"
)

func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	if err := report.Migrate(databaseURL); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Print("csp report migrations applied")
}
