package config

import (
	"log"

	"github.com/joho/godotenv"
)

func loadDotEnv() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}
