package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STOCKWARDEN_AUTH_JWT_SECRET", testSecret)

	cfg, err := Load(writeConfig(t, "server:\n  port: 8181\n"))
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Alerts.Threshold)
	assert.Equal(t, "inventory.manager@corp.com", cfg.Alerts.Recipient)
	assert.Equal(t, 5, cfg.Auth.OTPMaxAttempts)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "log", cfg.Notifier.Driver)
	assert.Equal(t, "0.0.0.0:8181", cfg.Server.Addr())
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodySize)
	assert.False(t, cfg.Server.TrustProxyHeaders)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("STOCKWARDEN_AUTH_JWT_SECRET", testSecret)
	t.Setenv("STOCKWARDEN_ALERTS_THRESHOLD", "7")
	t.Setenv("MAIL_USER", "mailer@corp.com")

	cfg, err := Load(writeConfig(t, "alerts:\n  threshold: 30\n"))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Alerts.Threshold)
	assert.Equal(t, "mailer@corp.com", cfg.Notifier.SMTP.Username)
}

func TestValidate(t *testing.T) {
	t.Setenv("STOCKWARDEN_AUTH_JWT_SECRET", testSecret)
	base, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }},
		{"negative threshold", func(c *Config) { c.Alerts.Threshold = -1 }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"unknown notifier", func(c *Config) { c.Notifier.Driver = "pigeon" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = "s3" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"zero otp attempts", func(c *Config) { c.Auth.OTPMaxAttempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
