package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Booking    BookingConfig    `yaml:"booking"`
	Admins     []string         `yaml:"admins"`
	API        APIConfig        `yaml:"api"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// BookingConfig is the business policy: which instants are bookable and how
// self-service cancellation is limited.
type BookingConfig struct {
	Timezone           string `yaml:"timezone"`
	OpenHour           int    `yaml:"open_hour"`
	CloseHour          int    `yaml:"close_hour"`
	BreakHours         []int  `yaml:"break_hours"`
	SlotMinute         int    `yaml:"slot_minute"`
	CancelCutoffHours  int    `yaml:"cancel_cutoff_hours"`
	MonthlyCancelLimit int    `yaml:"monthly_cancel_limit"`
	RateLimitActions   int    `yaml:"rate_limit_actions"`
	RateLimitWindow    int    `yaml:"rate_limit_window"` // seconds
}

// CancelCutoff returns the cutoff as a duration.
func (b BookingConfig) CancelCutoff() time.Duration {
	return time.Duration(b.CancelCutoffHours) * time.Hour
}

// Location resolves the configured timezone, falling back to local time.
func (b BookingConfig) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(b.Timezone)
}

// APIConfig describes the read-only HTTP API.
type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Name        string   `yaml:"name"`
	Key         string   `yaml:"key"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type TelegramConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BotToken    string `yaml:"bot_token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
}

type GoogleConfig struct {
	CredentialsFile       string `yaml:"credentials_file"`
	BookingsSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
}

type ExportConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	HorizonDays int    `yaml:"horizon_days"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
	HealthCheckPort   int  `yaml:"health_check_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	b := c.Booking
	if b.OpenHour < 0 || b.OpenHour > 23 || b.CloseHour < 0 || b.CloseHour > 23 {
		return errors.New("booking hours must be within 0..23")
	}
	if b.OpenHour > b.CloseHour {
		return errors.New("booking open_hour must not be after close_hour")
	}
	if b.SlotMinute < 0 || b.SlotMinute > 59 {
		return errors.New("booking slot_minute must be within 0..59")
	}
	for _, h := range b.BreakHours {
		if h < b.OpenHour || h > b.CloseHour {
			return fmt.Errorf("break hour %d is outside opening hours", h)
		}
	}
	if _, err := b.Location(); err != nil {
		return fmt.Errorf("invalid booking timezone: %w", err)
	}

	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE") {
		return errors.New("telegram bot token is required when telegram is enabled")
	}

	if c.API.Enabled && c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth is enabled but no api keys configured")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "slotnik"
	}

	// Booking policy defaults mirror the shop's standard schedule.
	if c.Booking.OpenHour == 0 && c.Booking.CloseHour == 0 {
		c.Booking.OpenHour = 10
		c.Booking.CloseHour = 20
	}
	if c.Booking.BreakHours == nil {
		c.Booking.BreakHours = []int{12, 18}
	}
	if c.Booking.SlotMinute == 0 {
		c.Booking.SlotMinute = 30
	}
	if c.Booking.CancelCutoffHours == 0 {
		c.Booking.CancelCutoffHours = 4
	}
	if c.Booking.MonthlyCancelLimit == 0 {
		c.Booking.MonthlyCancelLimit = 1
	}
	if c.Booking.RateLimitActions == 0 {
		c.Booking.RateLimitActions = 20
	}
	if c.Booking.RateLimitWindow == 0 {
		c.Booking.RateLimitWindow = 60
	}

	if c.API.Enabled && c.API.Port == 0 {
		c.API.Port = 8081
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Exports.HorizonDays == 0 {
		c.Exports.HorizonDays = 7
	}
}
