// Package config centralizes environment-based configuration for all
// services. Each service loads only the keys it needs and fails fast when a
// required key is missing.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// RequireEnv reads an environment variable and errors when it is unset or empty.
func RequireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s environment variable must be set", key)
	}
	return value, nil
}

// LoadDotenv loads a local .env file if one exists. Missing files are not an
// error so deployed environments keep working off real environment variables.
func LoadDotenv() {
	_ = godotenv.Load()
}

// Store holds the connection settings for the relational and blob stores
// shared by every service.
type Store struct {
	DatabaseURL     string
	DocumentsBucket string
	PagesBucket     string
}

// LoadStore reads the store configuration from the environment.
func LoadStore() (*Store, error) {
	databaseURL, err := RequireEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	documentsBucket, err := RequireEnv("DOCUMENTS_BUCKET")
	if err != nil {
		return nil, err
	}

	pagesBucket := os.Getenv("DOCUMENT_PAGES_BUCKET")
	if pagesBucket == "" {
		pagesBucket = documentsBucket
	}

	return &Store{
		DatabaseURL:     databaseURL,
		DocumentsBucket: documentsBucket,
		PagesBucket:     pagesBucket,
	}, nil
}
