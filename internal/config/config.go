package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Twilio     TwilioConfig
	OpenAI     OpenAIConfig
	Restaurant RestaurantConfig
	Admin      AdminConfig
	Server     ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// TwilioConfig holds telephony settings
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	// PublicBaseURL is the externally reachable base URL used to build the
	// media-stream WebSocket URL in the answer TwiML, without trailing slash.
	PublicBaseURL string
}

// OpenAIConfig holds speech-AI settings
type OpenAIConfig struct {
	APIKey        string
	RealtimeModel string
	Voice         string // realtime/TTS voice, e.g. "marin"
	Language      string // ISO-639-1 caller language, e.g. "nl"
}

// RestaurantConfig holds restaurant identity and menu location
type RestaurantConfig struct {
	Name     string
	MenuPath string
	Timezone string
}

// AdminConfig holds settings-API authentication
type AdminConfig struct {
	JWTSecret string
	// PasswordHash is a bcrypt hash of the admin password.
	PasswordHash string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
	// DashboardOrigin is the allowed CORS origin for the operator dashboard.
	DashboardOrigin string
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	// Database configuration
	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	// Twilio configuration
	if cfg.Twilio.AccountSID, err = requireEnv("TWILIO_ACCOUNT_SID"); err != nil {
		return nil, err
	}
	if cfg.Twilio.AuthToken, err = requireEnv("TWILIO_AUTH_TOKEN"); err != nil {
		return nil, err
	}
	if cfg.Twilio.PublicBaseURL, err = requireEnv("PUBLIC_BASE_URL"); err != nil {
		return nil, err
	}

	// OpenAI configuration
	if cfg.OpenAI.APIKey, err = requireEnv("OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	cfg.OpenAI.RealtimeModel = getEnvWithDefault("OPENAI_REALTIME_MODEL", "gpt-4o-realtime-preview")
	cfg.OpenAI.Voice = getEnvWithDefault("OPENAI_VOICE", "marin")
	cfg.OpenAI.Language = getEnvWithDefault("OPENAI_LANGUAGE", "nl")

	// Restaurant configuration
	cfg.Restaurant.Name = getEnvWithDefault("RESTAURANT_NAME", "Ristorante Adam Spanbroek")
	cfg.Restaurant.MenuPath = getEnvWithDefault("MENU_JSON_PATH", "data/menu.json")
	cfg.Restaurant.Timezone = getEnvWithDefault("TZ", "Europe/Amsterdam")

	// Admin configuration
	if cfg.Admin.JWTSecret, err = requireEnv("ADMIN_JWT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.Admin.PasswordHash, err = requireEnv("ADMIN_PASSWORD_HASH"); err != nil {
		return nil, err
	}

	// Server configuration
	serverPort, err := requireEnv("SERVER_PORT")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}
	cfg.Server.DashboardOrigin = getEnvWithDefault("DASHBOARD_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.Username, c.Password, c.Host, c.Name)
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
