package Models

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDataBase() {

	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	DbHost := os.Getenv("DB_HOST")
	DbUser := os.Getenv("DB_USER")
	DbPassword := os.Getenv("DB_PASSWORD")
	DbName := os.Getenv("DB_NAME")
	DbPort := os.Getenv("DB_PORT")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable", DbHost, DbUser, DbPassword, DbName, DbPort)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})

	if err != nil {
		fmt.Println("Cannot connect to database ")
		log.Fatal("connection error:", err)
	} else {
		fmt.Println("We are connected to the database ")
	}

	// First migrate models with no dependencies
	DB.AutoMigrate(&Person{})
	DB.AutoMigrate(&Event{})

	// Then migrate models that depend on people
	DB.AutoMigrate(&TherapistProfile{})
	DB.AutoMigrate(&TherapistContract{})
	DB.AutoMigrate(&LeadSubmission{})
	DB.AutoMigrate(&NotificationLog{})

	// Finally migrate models that depend on therapist profiles
	DB.AutoMigrate(&TherapistSlot{})
	DB.AutoMigrate(&Match{})
	DB.AutoMigrate(&Booking{})
}
