package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequired sets the variables without defaults and points the config file at
// a path that does not exist in the test's working directory.
func setRequired(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("COURIER_EMAIL_SENDER", "news@example.com")
	t.Setenv("COURIER_EMAIL_AUTH_TOKEN", "token")
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"COURIER_SERVER_PORT", "server.port"},
		{"COURIER_DATABASE_MAX_OPEN_CONNS", "database.max_open_conns"},
		{"COURIER_EMAIL_SMTP_HOST", "email.smtp_host"},
		{"COURIER_CONFIG", ""},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, envTransformFunc(tt.key))
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "courier_", cfg.Database.Prefix)
	assert.Equal(t, 10*time.Second, cfg.Worker.IdleWait)
	assert.Equal(t, time.Second, cfg.Worker.ErrorBackoff)
	assert.Equal(t, "queued", cfg.Publishing.Mode)
	assert.Equal(t, "/admin/newsletter", cfg.Publishing.RedirectLocation)
	assert.Equal(t, "api", cfg.Email.Kind)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("COURIER_SERVER_PORT", "9090")
	t.Setenv("COURIER_WORKER_COUNT", "4")
	t.Setenv("COURIER_WORKER_IDLE_WAIT", "2s")
	t.Setenv("COURIER_EMAIL_BREAKER_FAILURES", "3")
	t.Setenv("COURIER_PUBLISHING_MODE", "direct")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Worker.Count)
	assert.Equal(t, 2*time.Second, cfg.Worker.IdleWait)
	assert.Equal(t, uint32(3), cfg.Email.BreakerFailures)
	assert.Equal(t, "direct", cfg.Publishing.Mode)
}

func TestLoad_FileThenEnv(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "courier.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite3
  name: /tmp/courier.db
worker:
  count: 2
logging:
  level: debug
`), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("COURIER_WORKER_COUNT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Worker.Count, "environment wins over the file")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Contains(t, cfg.Database.DSN(), "_txlock=immediate")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"Missing sender", func(c *Config) { c.Email.Sender = "" }},
		{"Unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"Unknown mode", func(c *Config) { c.Publishing.Mode = "later" }},
		{"Zero workers", func(c *Config) { c.Worker.Count = 0 }},
		{"Zero idle wait", func(c *Config) { c.Worker.IdleWait = 0 }},
		{"Polling without interval", func(c *Config) {
			c.Publishing.InFlightAttempts = 3
			c.Publishing.InFlightInterval = 0
		}},
		{"Api without token", func(c *Config) { c.Email.AuthToken = "" }},
		{"Smtp without host", func(c *Config) { c.Email.Kind = "smtp" }},
		{"Unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"Bad port", func(c *Config) { c.Server.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Email.Sender = "news@example.com"
			cfg.Email.AuthToken = "token"
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_DisabledWorkersSkipCount(t *testing.T) {
	cfg := defaultConfig()
	cfg.Email.Sender = "news@example.com"
	cfg.Email.AuthToken = "token"
	cfg.Worker.Enabled = false
	cfg.Worker.Count = 0

	assert.NoError(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"postgres", "host=db port=5432 user=u password=p dbname=n sslmode=disable"},
		{"mysql", "u:p@tcp(db:5432)/n?parseTime=true"},
		{"sqlite3", "file:n?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			c := DatabaseConfig{Driver: tt.driver, Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
			assert.Equal(t, tt.want, c.DSN())
		})
	}
}
