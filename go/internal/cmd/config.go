package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port            string
	LogLevel        zerolog.Level
	SettingsPath    string
	LabelsPath      string
	AudioCommand    string
	PreferencesPath string
	// PreferencesBackend is "file" or "postgres".
	PreferencesBackend string
	HistoryEnabled     bool
	NATSURL            string
	NATSStream         string
	NATSSubjectPrefix  string
	ShutdownTimeout    time.Duration
}

func loadConfig() Config {
	level, err := zerolog.ParseLevel(strings.ToLower(getEnv("LOG_LEVEL", "info")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           level,
		SettingsPath:       getEnv("SETTINGS_PATH", "standup_settings.yaml"),
		LabelsPath:         os.Getenv("LABELS_PATH"),
		AudioCommand:       os.Getenv("AUDIO_COMMAND"),
		PreferencesPath:    getEnv("PREFERENCES_PATH", "standup_preferences.yaml"),
		PreferencesBackend: strings.ToLower(getEnv("PREFERENCES_BACKEND", "file")),
		HistoryEnabled:     getEnvAsBool("HISTORY_ENABLED", false),
		NATSURL:            os.Getenv("NATS_URL"),
		NATSStream:         getEnv("NATS_STREAM", "STANDUP_EVENTS"),
		NATSSubjectPrefix:  getEnv("NATS_SUBJECT_PREFIX", "standup.events"),
		ShutdownTimeout:    time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
	}
}

// needsDatabase reports whether a database/sql connection is required.
// History opens its own pgx pool.
func (c Config) needsDatabase() bool {
	return c.PreferencesBackend == "postgres"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
