package common

import (
	"log"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func ConnectDb() *gorm.DB {
	dbFile := os.Getenv("sqlite_db")
	if dbFile == "" {
		log.Println("sqlite_db not set")
		return nil
	}

	db, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Println("Error opening sqlite db: " + err.Error())
		return nil
	}
	log.Println("opened sqlite db at:", dbFile)
	return db
}

// Domain returns the externally visible base URL, without a trailing slash.
func Domain() string {
	d := os.Getenv("DOMAIN")
	if d == "" {
		d = "http://localhost:8080"
	}
	if d[len(d)-1] == '/' {
		d = d[:len(d)-1]
	}
	return d
}
