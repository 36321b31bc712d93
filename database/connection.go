package database

import (
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// DSN builds the PostgreSQL connection string. DATABASE_URL wins when
// set (hosted deployments); otherwise individual variables with local
// defaults are used.
func DSN() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		dbUser = "postgres"
	}

	dbPass := os.Getenv("DB_PASS")
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "cobranca"
	}

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=5432 sslmode=disable",
		dbHost, dbUser, dbPass, dbName)
}

func Connect() {
	var err error

	dsn := DSN()
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("Connecting to PostgreSQL via DATABASE_URL")
	} else {
		log.Println("Connecting to local PostgreSQL")
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		panic(err)
	}

	log.Println("✅ Database connected successfully!")
}
