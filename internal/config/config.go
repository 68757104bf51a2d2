package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultPort           = "8080"
	defaultDeviceCodeSalt = "salt"
	defaultVonageEndpoint = "https://api.nexmo.com/v0.3"
	defaultBotName        = "bot:vonage"
	defaultVonageTimeout  = 10 * time.Second

	// VoiceInboundAgent connects inbound calls to an available agent
	VoiceInboundAgent = "agent"

	// VoiceInboundConversation asks inbound callers for a conversation code on the keypad
	VoiceInboundConversation = "conversation"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Port        string

	// Vonage application credentials used to mint SDK and API tokens
	VonagePrivateKey    string
	VonageApplicationID string
	VonageEndpoint      string
	VonageLVN           string
	VonageTimeout       time.Duration
	VoiceInboundMode    string

	DeviceRefreshTokenSecret string
	DeviceCodeSalt           string

	// SupabaseJWTSecret verifies the access tokens of signed-in users
	SupabaseJWTSecret string

	VerifyToken             string
	FacebookPageAccessToken string
	BotName                 string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:             defaultPort,
		DeviceCodeSalt:   defaultDeviceCodeSalt,
		VonageEndpoint:   defaultVonageEndpoint,
		VonageTimeout:    defaultVonageTimeout,
		VoiceInboundMode: VoiceInboundAgent,
		BotName:          defaultBotName,
		LogLevel:         "info",
		LogFormat:        "text",
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	if u, err := url.Parse(databaseURL); err == nil {
		slog.Debug("database target", "host", u.Hostname(), "db", strings.TrimPrefix(u.Path, "/"))
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	// PEM keys pasted into a single env line keep their newlines escaped
	privateKey := strings.ReplaceAll(os.Getenv("VONAGE_PRIVATE_KEY"), `\n`, "\n")
	if strings.TrimSpace(privateKey) == "" {
		return nil, fmt.Errorf("VONAGE_PRIVATE_KEY environment variable is required")
	}
	cfg.VonagePrivateKey = privateKey

	cfg.VonageApplicationID = os.Getenv("VONAGE_APPLICATION_ID")
	if cfg.VonageApplicationID == "" {
		return nil, fmt.Errorf("VONAGE_APPLICATION_ID environment variable is required")
	}

	cfg.DeviceRefreshTokenSecret = os.Getenv("DEVICE_REFRESH_TOKEN_SECRET")
	if cfg.DeviceRefreshTokenSecret == "" {
		return nil, fmt.Errorf("DEVICE_REFRESH_TOKEN_SECRET environment variable is required")
	}

	cfg.SupabaseJWTSecret = os.Getenv("SUPABASE_JWT_SECRET")
	if cfg.SupabaseJWTSecret == "" {
		return nil, fmt.Errorf("SUPABASE_JWT_SECRET environment variable is required")
	}

	if salt := os.Getenv("DEVICE_CODE_SALT"); salt != "" {
		cfg.DeviceCodeSalt = salt
	}
	if endpoint := os.Getenv("VONAGE_ENDPOINT"); endpoint != "" {
		cfg.VonageEndpoint = strings.TrimRight(endpoint, "/")
	}
	if timeout := os.Getenv("VONAGE_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid VONAGE_TIMEOUT: %w", err)
		}
		cfg.VonageTimeout = d
	}
	if mode := os.Getenv("VOICE_INBOUND_MODE"); mode != "" {
		mode = strings.ToLower(mode)
		if mode != VoiceInboundAgent && mode != VoiceInboundConversation {
			return nil, fmt.Errorf("invalid VOICE_INBOUND_MODE %q: want %s or %s", mode, VoiceInboundAgent, VoiceInboundConversation)
		}
		cfg.VoiceInboundMode = mode
	}
	if name := os.Getenv("BOT_NAME"); name != "" {
		cfg.BotName = name
	}

	cfg.VonageLVN = os.Getenv("VONAGE_LVN")
	cfg.VerifyToken = os.Getenv("VERIFY_TOKEN")
	cfg.FacebookPageAccessToken = os.Getenv("FACEBOOK_PAGE_ACCESS_TOKEN")

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.LogFormat = strings.ToLower(format)
	}

	return cfg, nil
}
