package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// AgentConfig configures the per-employee tracking agent.
type AgentConfig struct {
	API     AgentAPIConfig
	App     AppConfig
	Queue   QueueConfig
	Network NetworkConfig
	Idle    IdleConfig

	EmployeeID      string
	LocationTimeout time.Duration
}

type AgentAPIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type QueueConfig struct {
	Path          string
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	RetryInterval time.Duration
}

type NetworkConfig struct {
	HealthPath string
	Interval   time.Duration
	Timeout    time.Duration
}

type IdleConfig struct {
	ThresholdMinutes     int
	ShowWarning          bool
	WarningMinutes       int
	AutoResumeOnActivity bool
	PauseTimerOnIdle     bool
	SampleInterval       time.Duration
}

func LoadAgent() (*AgentConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &AgentConfig{
		EmployeeID: getEnv("EMPLOYEE_ID", ""),
	}

	port, err := getEnvInt("AGENT_PORT", 7420)
	if err != nil {
		return nil, err
	}
	cfg.App = AppConfig{
		Port:           port,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS"),
	}

	apiTimeout, err := getEnvDuration("API_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cfg.API = AgentAPIConfig{
		BaseURL: strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080"), "/"),
		Token:   getEnv("AGENT_TOKEN", ""),
		Timeout: apiTimeout,
	}

	if cfg.LocationTimeout, err = getEnvDuration("LOCATION_TIMEOUT", "5s"); err != nil {
		return nil, err
	}

	// Offline queue
	cfg.Queue.Path = getEnv("QUEUE_PATH", "attendance-queue.db")
	if cfg.Queue.BaseBackoff, err = getEnvDuration("SYNC_BASE_BACKOFF", "30s"); err != nil {
		return nil, err
	}
	if cfg.Queue.MaxBackoff, err = getEnvDuration("SYNC_MAX_BACKOFF", "30m"); err != nil {
		return nil, err
	}
	if cfg.Queue.RetryInterval, err = getEnvDuration("SYNC_RETRY_INTERVAL", "30s"); err != nil {
		return nil, err
	}

	// Network detection
	cfg.Network.HealthPath = getEnv("HEALTH_PATH", "/health")
	if cfg.Network.Interval, err = getEnvDuration("HEALTH_INTERVAL", "30s"); err != nil {
		return nil, err
	}
	if cfg.Network.Timeout, err = getEnvDuration("HEALTH_TIMEOUT", "5s"); err != nil {
		return nil, err
	}

	// Idle detection
	if cfg.Idle.ThresholdMinutes, err = getEnvInt("IDLE_THRESHOLD_MINUTES", 5); err != nil {
		return nil, err
	}
	if cfg.Idle.ShowWarning, err = getEnvBool("IDLE_SHOW_WARNING", true); err != nil {
		return nil, err
	}
	if cfg.Idle.WarningMinutes, err = getEnvInt("IDLE_WARNING_MINUTES", 1); err != nil {
		return nil, err
	}
	if cfg.Idle.AutoResumeOnActivity, err = getEnvBool("IDLE_AUTO_RESUME", true); err != nil {
		return nil, err
	}
	if cfg.Idle.PauseTimerOnIdle, err = getEnvBool("IDLE_PAUSE_TIMER", true); err != nil {
		return nil, err
	}
	if cfg.Idle.SampleInterval, err = getEnvDuration("IDLE_SAMPLE_INTERVAL", "15s"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *AgentConfig) Validate() error {
	if c.EmployeeID == "" {
		return fmt.Errorf("EMPLOYEE_ID is required")
	}
	if c.API.Token == "" {
		return fmt.Errorf("AGENT_TOKEN is required")
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL")
	}
	if c.Queue.Path == "" {
		return fmt.Errorf("QUEUE_PATH is required")
	}
	if c.Queue.BaseBackoff <= 0 || c.Queue.MaxBackoff < c.Queue.BaseBackoff {
		return fmt.Errorf("SYNC_MAX_BACKOFF must be at least SYNC_BASE_BACKOFF")
	}
	return nil
}

// HealthURL is the api endpoint probed for connectivity.
func (c *AgentConfig) HealthURL() string {
	return c.API.BaseURL + "/" + strings.TrimLeft(c.Network.HealthPath, "/")
}

// ListenAddr is the local address of the agent's HTTP surface. The agent only
// listens on loopback.
func (c *AgentConfig) ListenAddr() string {
	return "127.0.0.1:" + strconv.Itoa(c.App.Port)
}
