package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	Port       int
	TwilioPort int    // Port for the Twilio webhooks when ServerType is "both"
	ServerType string // "api", "twilio", or "both"

	Flow            string // name of the intake flow, see callflow.Names
	BusinessProfile string // defaults to the flow's vertical
	MaxAttempts     int    // invalid answers per step before handoff; 0 disables
	HandoffNumber   string // dialed by the Twilio server on handoff

	StoreType      string // "memory" or "redis"
	RedisURL       string
	RedisPassword  string
	MaxSessions    int
	SessionTimeout time.Duration

	AllowedOrigins  []string
	KeepAlivePeriod time.Duration

	GeminiAPIKey    string // optional; enables prompt rephrasing
	GeminiModel     string
	RephraseTimeout time.Duration

	EventsChannel string // Redis pub/sub channel for call events; empty disables

	SignalWireProjectID string
	SignalWireToken     string
	SignalWireSpace     string
	SignalWireFrom      string

	LogLevel  string
	LogFormat string // "json" or "console"
}

// SMSEnabled reports whether every SignalWire credential is present.
func (c *Config) SMSEnabled() bool {
	return c.SignalWireProjectID != "" && c.SignalWireToken != "" && c.SignalWireSpace != "" && c.SignalWireFrom != ""
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:            8080,
		TwilioPort:      8081,
		ServerType:      "api",
		Flow:            "roofing",
		MaxAttempts:     3,
		StoreType:       "memory",
		RedisURL:        "localhost:6379",
		MaxSessions:     100,
		SessionTimeout:  30 * time.Minute,
		AllowedOrigins:  []string{"*"},
		KeepAlivePeriod: 30 * time.Second,
		GeminiModel:     "gemini-2.0-flash",
		RephraseTimeout: 1500 * time.Millisecond,
		LogLevel:        "info",
		LogFormat:       "json",
	}

	if err := loadInt("PORT", &config.Port); err != nil {
		return nil, err
	}
	if err := loadInt("TWILIO_PORT", &config.TwilioPort); err != nil {
		return nil, err
	}

	// Optional: SERVER_TYPE ("api", "twilio", or "both")
	if serverType := os.Getenv("SERVER_TYPE"); serverType != "" {
		switch serverType {
		case "api", "twilio", "both":
			config.ServerType = serverType
		default:
			return nil, fmt.Errorf("invalid SERVER_TYPE: must be 'api', 'twilio', or 'both'")
		}
	}

	if flow := os.Getenv("FLOW"); flow != "" {
		config.Flow = flow
	}
	config.BusinessProfile = os.Getenv("BUSINESS_PROFILE")
	if err := loadInt("MAX_ATTEMPTS", &config.MaxAttempts); err != nil {
		return nil, err
	}
	if config.MaxAttempts < 0 {
		return nil, fmt.Errorf("invalid MAX_ATTEMPTS: must not be negative")
	}
	config.HandoffNumber = os.Getenv("HANDOFF_NUMBER")

	if storeType := os.Getenv("STORE_TYPE"); storeType != "" {
		switch storeType {
		case "memory", "redis":
			config.StoreType = storeType
		default:
			return nil, fmt.Errorf("invalid STORE_TYPE: must be 'memory' or 'redis'")
		}
	}

	// Optional: REDIS_URL
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}
	config.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if err := loadInt("MAX_SESSIONS", &config.MaxSessions); err != nil {
		return nil, err
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if err := loadDuration("SESSION_TIMEOUT", time.Minute, &config.SessionTimeout); err != nil {
		return nil, err
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: KEEPALIVE_PERIOD (in seconds)
	if err := loadDuration("KEEPALIVE_PERIOD", time.Second, &config.KeepAlivePeriod); err != nil {
		return nil, err
	}

	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.GeminiModel = model
	}
	// Optional: REPHRASE_TIMEOUT (in milliseconds)
	if err := loadDuration("REPHRASE_TIMEOUT", time.Millisecond, &config.RephraseTimeout); err != nil {
		return nil, err
	}

	config.EventsChannel = os.Getenv("EVENTS_CHANNEL")

	config.SignalWireProjectID = os.Getenv("SIGNALWIRE_PROJECT_ID")
	config.SignalWireToken = os.Getenv("SIGNALWIRE_TOKEN")
	config.SignalWireSpace = os.Getenv("SIGNALWIRE_SPACE")
	config.SignalWireFrom = os.Getenv("SIGNALWIRE_FROM")

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		switch level {
		case "debug", "info", "warn", "error":
			config.LogLevel = level
		default:
			return nil, fmt.Errorf("invalid LOG_LEVEL: must be 'debug', 'info', 'warn', or 'error'")
		}
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		switch format {
		case "json", "console":
			config.LogFormat = format
		default:
			return nil, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'console'")
		}
	}

	return config, nil
}

func loadInt(name string, dst *int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = v
	return nil
}

func loadDuration(name string, unit time.Duration, dst *time.Duration) error {
	var n int
	if err := loadInt(name, &n); err != nil {
		return err
	}
	if os.Getenv(name) != "" {
		*dst = time.Duration(n) * unit
	}
	return nil
}
