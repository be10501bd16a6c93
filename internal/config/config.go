package config

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	StatePath     string
	HistoryDBPath string

	// Backend API. The proxied base is the default; the direct base is kept
	// for when the proxy is bypassed.
	APIBaseDirect string
	APIBaseProxy  string
	ApplicationID string
	AuthKey       string
	CallbackURL   string

	CSRFKey      []byte
	SessionKey   []byte
	CookieDomain string
	CookieSecure bool
}

func LoadConfig() (*Config, error) {
	// Best effort: a missing .env just means plain environment variables.
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded environment from .env")
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8585"),
		StatePath:     getEnv("STATE_PATH", "./storefront.state"),
		HistoryDBPath: getEnv("HISTORY_DB_PATH", "./storefront.db"),
		APIBaseDirect: getEnv("API_BASE_DIRECT", "https://store-api.example.com/api"),
		APIBaseProxy:  getEnv("API_BASE_PROXY", "http://localhost:3000/api"),
		ApplicationID: getEnv("APPLICATION_ID", ""),
		AuthKey:       getEnv("AUTH_KEY", ""),
		CallbackURL:   getEnv("CALLBACK_URL", ""),
		CookieDomain:  getEnv("COOKIE_DOMAIN", ""),
		CookieSecure:  getEnv("COOKIE_SECURE", "false") == "true",
	}

	if cfg.ApplicationID == "" {
		slog.Warn("APPLICATION_ID environment variable not set. Logins against the identity service will be rejected.")
	}
	if cfg.AuthKey == "" {
		slog.Warn("AUTH_KEY environment variable not set. Login and token refresh calls will go out without the shared application key.")
	}

	// CSRF Key (critical for security)
	cfg.CSRFKey = loadKey("CSRF_KEY")
	// Session Key (critical for security)
	cfg.SessionKey = loadKey("SESSION_KEY")

	// Make sure port is valid
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		slog.Error("Invalid PORT environment variable. Falling back to default.", "PORT", os.Getenv("PORT"))
		cfg.Port = "8585"
	}

	return cfg, nil
}

// loadKey decodes a base64 key from the environment, generating a random
// development key (with a warning) when it is absent or too short.
func loadKey(envVar string) []byte {
	keyStr := os.Getenv(envVar)
	if keyStr == "" {
		slog.Warn(envVar + " environment variable not set. Generating a random key for development. This key will change on each restart. PLEASE SET " + envVar + " IN PRODUCTION!")
		return generateRandomBytes(32)
	}
	decodedKey, err := base64.StdEncoding.DecodeString(keyStr)
	if err != nil || len(decodedKey) < 32 {
		slog.Warn(envVar + " is invalid or too short (min 32 bytes recommended). Generating a random key for development. PLEASE SET A SECURE " + envVar + " IN PRODUCTION!")
		return generateRandomBytes(32)
	}
	return decodedKey
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// generateRandomBytes generates a random byte slice of specified length
// Uses crypto/rand for secure random numbers.
func generateRandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil { // Use crypto/rand
		slog.Error("Failed to read random bytes", "error", err)
		// Fallback to a less secure random string if crypto/rand fails
		// This fallback is only for panic prevention, not for production use
		fallbackKey := "fallback-insecure-key-" + strconv.FormatInt(time.Now().UnixNano(), 10)
		if len(fallbackKey) < n {
			paddedKey := make([]byte, n)
			copy(paddedKey, fallbackKey)
			return paddedKey
		}
		return []byte(fallbackKey)[:n]
	}
	return b
}
