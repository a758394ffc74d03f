package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server Settings
	AppPort     string
	HOST        string
	DatabaseURL string

	// JWT Settings
	JWTSecret     string
	JWTExpiration string

	// Storefront Settings
	BkashNumber        string
	CODNumber          string
	DefaultDeliveryFee float64
	OrderWebhookURL    string

	// CORS Settings
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from environment")
	}

	config := &Config{
		AppPort:     getEnv("PORT", "3000"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		HOST:        getEnv("HOST", "0.0.0.0"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTExpiration: getEnv("JWT_EXPIRES_IN", "72h"),

		BkashNumber:        os.Getenv("BKASH_NUMBER"),
		CODNumber:          os.Getenv("COD_NUMBER"),
		DefaultDeliveryFee: getEnvFloat("DELIVERY_FEE", 70),
		OrderWebhookURL:    os.Getenv("ORDER_WEBHOOK_URL"),

		CORSAllowOrigins: []string{"*"},
		CORSAllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		CORSAllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
	}

	return config
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Invalid %s value %q, using default %v", key, v, fallback)
		return fallback
	}
	return f
}
