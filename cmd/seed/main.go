package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/pulseapp/pulse/internal/database"
	"github.com/pulseapp/pulse/internal/logger"
	"github.com/pulseapp/pulse/internal/seed"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), "seed.log"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if err := database.Initialize(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	seeder := seed.NewSeeder(database.DB)

	var err error
	switch command {
	case "dev":
		log.Println("Seeding development database...")
		err = seeder.SeedDev()
	case "test":
		log.Println("Seeding test database...")
		err = seeder.SeedTest()
	case "clean":
		log.Println("Removing all seed data...")
		err = seeder.Clean()
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic data")
		fmt.Println("  test  - Seed test database with minimal data")
		fmt.Println("  clean - Remove all seed data (use with caution)")
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Println("Done")
}
