package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no config from the host.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"DATABASE_URL", "DB_PASSWORD", "DB_HOST", "JWT_SECRET_KEY", "HALF_DAY_FRACTION",
		"MAX_CLOCK_SKEW", "EMPLOYEE_ID", "AGENT_TOKEN", "API_BASE_URL", "SYNC_MAX_BACKOFF",
		"SYNC_BASE_BACKOFF", "AGENT_PORT", "APP_PORT", "CRON_ENABLED",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Setup
	isolate(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/attendance")
	t.Setenv("JWT_SECRET_KEY", "secret")

	// Act
	cfg, err := Load()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/attendance", cfg.DatabaseURL())
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 0.5, cfg.Attendance.HalfDayFraction)
	assert.Equal(t, 5*time.Minute, cfg.Attendance.MaxClockSkew)
	assert.True(t, cfg.Cron.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Cron.AutoPunchOutInterval)
}

func TestLoad_BuildsURLFromParts(t *testing.T) {
	isolate(t)
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_HOST", "db")
	t.Setenv("JWT_SECRET_KEY", "secret")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "postgres://postgres:pw@db:5432/attendance?sslmode=disable", cfg.DatabaseURL())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"DATABASE_URL": "postgres://x"}},
		{name: "missing database", env: map[string]string{"JWT_SECRET_KEY": "s"}},
		{name: "bad half day", env: map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET_KEY": "s", "HALF_DAY_FRACTION": "2"}},
		{name: "bad duration", env: map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET_KEY": "s", "MAX_CLOCK_SKEW": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()

			assert.Error(t, err)
		})
	}
}

func TestLoadAgent(t *testing.T) {
	isolate(t)
	t.Setenv("EMPLOYEE_ID", "emp-1")
	t.Setenv("AGENT_TOKEN", "token")
	t.Setenv("API_BASE_URL", "https://attendance.example.com/")
	t.Setenv("SYNC_MAX_BACKOFF", "10m")

	cfg, err := LoadAgent()

	require.NoError(t, err)
	assert.Equal(t, "https://attendance.example.com/health", cfg.HealthURL())
	assert.Equal(t, "127.0.0.1:7420", cfg.ListenAddr())
	assert.Equal(t, 30*time.Second, cfg.Queue.BaseBackoff)
	assert.Equal(t, 10*time.Minute, cfg.Queue.MaxBackoff)
	assert.Equal(t, 5, cfg.Idle.ThresholdMinutes)
	assert.Equal(t, 5*time.Second, cfg.LocationTimeout)
}

func TestLoadAgent_RequiresEmployee(t *testing.T) {
	isolate(t)
	t.Setenv("AGENT_TOKEN", "token")

	_, err := LoadAgent()

	assert.ErrorContains(t, err, "EMPLOYEE_ID")
}

func TestAppConfig_SlogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", AppConfig{LogLevel: "debug"}.SlogLevel().String())
	assert.Equal(t, "WARN", AppConfig{LogLevel: "WARN"}.SlogLevel().String())
	assert.Equal(t, "INFO", AppConfig{LogLevel: "loud"}.SlogLevel().String())
}
