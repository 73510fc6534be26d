package config

import (
	"os"
)

func GetConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnv("POSTGRES_PORT", "5432"),
		User:     getEnv("POSTGRES_USER", "postgres"),
		Password: getEnv("POSTGRES_PASSWORD", "postgres"),
		DBName:   getEnv("POSTGRES_NAME", "postgres"),
	}
}

func GetMarketplaceConfig() *MarketplaceConfig {
	return &MarketplaceConfig{
		ApiKey:  getEnv("MARKETPLACE_API_KEY", ""),
		BaseUrl: getEnv("MARKETPLACE_API_URL", "https://marketplace.api.example.com/v3"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
