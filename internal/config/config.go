package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingValue indicates a required setting is empty.
	ErrMissingValue = errors.New("config: missing value")
)

// AlertsConfig tunes alert evaluation and series aggregation.
type AlertsConfig struct {
	Cooldown time.Duration `yaml:"cooldown"`
	Epoch    int64         `yaml:"epoch"`
	Timezone string        `yaml:"timezone"`
}

// NotifyConfig configures alert delivery sinks.
type NotifyConfig struct {
	WebhookURL    string        `yaml:"webhook_url"`
	Template      string        `yaml:"template"`
	MarkdownTitle string        `yaml:"markdown_title"`
	DashboardURL  string        `yaml:"dashboard_url"`
	DedupeWindow  time.Duration `yaml:"dedupe_window"`
	Timeout       time.Duration `yaml:"timeout"`
	QueueSize     int           `yaml:"queue_size"`
	PushTopicARN  string        `yaml:"push_topic_arn"`
	PushRegion    string        `yaml:"push_region"`
}

// Config is the process configuration.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	Debug       bool   `yaml:"debug"`
	DatabaseURL string `yaml:"-"`

	RTDBURL     string `yaml:"rtdb_url"`
	RTDBSecret  string `yaml:"-"`
	SensorPath  string `yaml:"sensor_path"`
	HistoryPath string `yaml:"history_path"`
	PumpPath    string `yaml:"pump_path"`
	UsersPath   string `yaml:"users_path"`

	IdentityAPIKey  string `yaml:"-"`
	IdentityBaseURL string `yaml:"identity_base_url"`

	JWTSecret     string            `yaml:"-"`
	SessionTTL    time.Duration     `yaml:"session_ttl"`
	DefaultRole   string            `yaml:"default_role"`
	RoleOverrides map[string]string `yaml:"roles"`

	HistoryRefresh time.Duration `yaml:"history_refresh"`
	BackoffMin     time.Duration `yaml:"backoff_min"`
	BackoffMax     time.Duration `yaml:"backoff_max"`

	Alerts AlertsConfig `yaml:"alerts"`
	Notify NotifyConfig `yaml:"notify"`
}

// Load reads an optional .env file, the environment and an optional YAML
// file named by HYDRO_CONFIG. YAML values override the environment.
// Secrets are read from the environment only.
func Load() (Config, error) {
	envFile := getenvDefault("HYDRO_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	cfg := Config{
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		Debug:       getenvBool("DEBUG", false),
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),

		RTDBURL:     os.Getenv("HYDRO_RTDB_URL"),
		RTDBSecret:  os.Getenv("HYDRO_RTDB_SECRET"),
		SensorPath:  getenvDefault("HYDRO_SENSOR_PATH", "sensor"),
		HistoryPath: getenvDefault("HYDRO_HISTORY_PATH", "history"),
		PumpPath:    getenvDefault("HYDRO_PUMP_PATH", "pump_state"),
		UsersPath:   getenvDefault("HYDRO_USERS_PATH", "users"),

		IdentityAPIKey:  os.Getenv("HYDRO_IDENTITY_API_KEY"),
		IdentityBaseURL: os.Getenv("HYDRO_IDENTITY_BASE_URL"),

		JWTSecret:     getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		SessionTTL:    getenvDuration("AUTH_SESSION_TTL", 12*time.Hour),
		DefaultRole:   getenvDefault("AUTH_DEFAULT_ROLE", "operator"),
		RoleOverrides: parseRoles(os.Getenv("AUTH_ROLE_OVERRIDES")),

		HistoryRefresh: getenvDuration("HYDRO_HISTORY_REFRESH", 5*time.Minute),
		BackoffMin:     getenvDuration("HYDRO_BACKOFF_MIN", time.Second),
		BackoffMax:     getenvDuration("HYDRO_BACKOFF_MAX", time.Minute),

		Alerts: AlertsConfig{
			Cooldown: getenvDuration("HYDRO_ALERT_COOLDOWN", 5*time.Minute),
			Epoch:    getenvInt64("HYDRO_EPOCH", 0),
			Timezone: getenvDefault("HYDRO_TIMEZONE", "UTC"),
		},
		Notify: NotifyConfig{
			WebhookURL:    os.Getenv("HYDRO_WEBHOOK_URL"),
			Template:      os.Getenv("HYDRO_NOTIFY_TEMPLATE"),
			MarkdownTitle: os.Getenv("HYDRO_NOTIFY_MARKDOWN_TITLE"),
			DashboardURL:  os.Getenv("HYDRO_DASHBOARD_URL"),
			DedupeWindow:  getenvDuration("HYDRO_NOTIFY_DEDUP_WINDOW", 0),
			Timeout:       getenvDuration("HYDRO_NOTIFY_TIMEOUT", 5*time.Second),
			QueueSize:     getenvIntDefault("HYDRO_NOTIFY_QUEUE_SIZE", 64),
			PushTopicARN:  os.Getenv("HYDRO_PUSH_TOPIC_ARN"),
			PushRegion:    getenvDefault("HYDRO_PUSH_REGION", getenvDefault("AWS_REGION", "us-east-1")),
		},
	}

	if path := os.Getenv("HYDRO_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks required values.
func (c Config) Validate() error {
	var missing []string
	if c.RTDBURL == "" {
		missing = append(missing, "HYDRO_RTDB_URL")
	}
	if c.IdentityAPIKey == "" {
		missing = append(missing, "HYDRO_IDENTITY_API_KEY")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingValue, strings.Join(missing, ", "))
	}
	if c.BackoffMax < c.BackoffMin {
		return fmt.Errorf("config: backoff max %s below min %s", c.BackoffMax, c.BackoffMin)
	}
	return nil
}

// Location resolves the alert timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if c.Alerts.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Alerts.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseRoles reads "uid=role,uid=role".
func parseRoles(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		uid, role, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || uid == "" || role == "" {
			continue
		}
		out[strings.TrimSpace(uid)] = strings.TrimSpace(role)
	}
	return out
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
