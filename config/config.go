package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadENV loads environment variables from .env unless GO_ENV says otherwise
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL      string
	REDIS_PASSWORD string
	REDIS_DB       string
	// OpenAI Configuration
	OPENAI_API_KEY string
	// Spaces (S3-compatible) Configuration for ticket attachments
	SPACES_ACCESS_KEY string
	SPACES_SECRET_KEY string
	SPACES_BUCKET     string
	SPACES_REGION     string
	SPACES_ENDPOINT   string
	SPACES_CDN_URL    string
	// Search behavior
	SEARCH_UNEMBEDDED_IN_FALLBACK bool
	// Retention / housekeeping
	TICKET_AUTO_CLOSE_DAYS      int
	CONVERSATION_RETENTION_DAYS int
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	dbSSLMode := os.Getenv("DB_SSL_MODE")
	if dbSSLMode == "" {
		dbSSLMode = "disable"
	}

	// Articles without an embedding are invisible to vector search either way;
	// this flag decides whether text/popularity fallback still surfaces them.
	unembeddedInFallback := true
	if v := os.Getenv("SEARCH_UNEMBEDDED_IN_FALLBACK"); v != "" {
		unembeddedInFallback, err = strconv.ParseBool(v)
		if err != nil {
			unembeddedInFallback = true
		}
	}

	autoCloseDays, err := strconv.Atoi(os.Getenv("TICKET_AUTO_CLOSE_DAYS"))
	if err != nil || autoCloseDays <= 0 {
		autoCloseDays = 7
	}

	retentionDays, err := strconv.Atoi(os.Getenv("CONVERSATION_RETENTION_DAYS"))
	if err != nil || retentionDays <= 0 {
		retentionDays = 90
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  dbSSLMode,
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: os.Getenv("JWT_ISSUER"),
		// Redis
		REDIS_URL:      os.Getenv("REDIS_URL"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:       os.Getenv("REDIS_DB"),
		// OpenAI
		OPENAI_API_KEY: os.Getenv("OPENAI_API_KEY"),
		// Spaces
		SPACES_ACCESS_KEY: os.Getenv("SPACES_ACCESS_KEY"),
		SPACES_SECRET_KEY: os.Getenv("SPACES_SECRET_KEY"),
		SPACES_BUCKET:     os.Getenv("SPACES_BUCKET"),
		SPACES_REGION:     os.Getenv("SPACES_REGION"),
		SPACES_ENDPOINT:   os.Getenv("SPACES_ENDPOINT"),
		SPACES_CDN_URL:    os.Getenv("SPACES_CDN_URL"),
		// Search
		SEARCH_UNEMBEDDED_IN_FALLBACK: unembeddedInFallback,
		// Housekeeping
		TICKET_AUTO_CLOSE_DAYS:      autoCloseDays,
		CONVERSATION_RETENTION_DAYS: retentionDays,
	}

	return envVariables, nil
}
