package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	JWT        JWTConfig
	App        AppConfig
	Attendance AttendanceConfig
	Cron       CronConfig
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// AttendanceConfig holds policy values shared by every employee
type AttendanceConfig struct {
	HalfDayFraction float64
	MaxClockSkew    time.Duration
}

// CronConfig holds background job intervals
type CronConfig struct {
	Enabled              bool
	AutoPunchOutInterval time.Duration
	MarkAbsentInterval   time.Duration
}

// loadDotEnv reads .env when present. A missing file is not an error; the
// environment alone is enough in containers.
func loadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("error loading .env file: %w", err)
}

func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		URL:      getEnv("DATABASE_URL", ""),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "attendance"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "720h"),
	}

	// Attendance policy
	halfDay, err := strconv.ParseFloat(getEnv("HALF_DAY_FRACTION", "0.5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid HALF_DAY_FRACTION: %w", err)
	}
	skew, err := getEnvDuration("MAX_CLOCK_SKEW", "5m")
	if err != nil {
		return nil, err
	}
	config.Attendance = AttendanceConfig{
		HalfDayFraction: halfDay,
		MaxClockSkew:    skew,
	}

	// Cron configuration
	cronEnabled, err := getEnvBool("CRON_ENABLED", true)
	if err != nil {
		return nil, err
	}
	autoPunchOut, err := getEnvDuration("CRON_AUTO_PUNCH_OUT_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}
	markAbsent, err := getEnvDuration("CRON_MARK_ABSENT_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}
	config.Cron = CronConfig{
		Enabled:              cronEnabled,
		AutoPunchOutInterval: autoPunchOut,
		MarkAbsentInterval:   markAbsent,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" && c.Database.Password == "" {
		return fmt.Errorf("DATABASE_URL or DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if _, err := time.ParseDuration(c.JWT.AccessExpiration); err != nil {
		return fmt.Errorf("invalid JWT_ACCESS_EXPIRATION_TIME: %w", err)
	}
	if c.Attendance.HalfDayFraction <= 0 || c.Attendance.HalfDayFraction > 1 {
		return fmt.Errorf("HALF_DAY_FRACTION must be in (0, 1]")
	}
	if c.Cron.Enabled && (c.Cron.AutoPunchOutInterval <= 0 || c.Cron.MarkAbsentInterval <= 0) {
		return fmt.Errorf("cron intervals must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (a AppConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}

func getEnvDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
