package main

import (
	"os"

	"github.com/joho/godotenv"
)

// Config carries everything the server reads from the environment.
type Config struct {
	HTTPAddr    string
	DatabaseURL string
	JWTSecret   string
	Env         string
}

func loadConfig() Config {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	return Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", "dev_secret_change_in_production"),
		Env:         getEnv("GO_ENV", "development"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
