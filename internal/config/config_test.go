package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z7VMh0DFs3Yb8ZDyc/XY4S5C"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAgentAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  operators:
    - username: admin
      password_hash: "`+testHash+`"
command:
  timeout: 5s
`)

	cfg, err := LoadAgent(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.LoadedFrom)
	assert.Equal(t, "localhost:5000", cfg.Server.Listen)
	assert.Equal(t, 5*time.Second, cfg.Command.Timeout)
	assert.Equal(t, "/bin/sh", cfg.Command.Shell)
	assert.Equal(t, 1000, cfg.Logs.MaxLines)
	assert.Equal(t, []string{"/home", "/tmp"}, cfg.Files.Roots)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Contains(t, cfg.Command.Blocklist, "rm -rf")
}

func TestLoadAgentEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "0.0.0.0:9000"
auth:
  operators:
    - username: admin
      password_hash: "`+testHash+`"
`)
	t.Setenv("WEBPANEL_LISTEN", "127.0.0.1:7000")
	t.Setenv("WEBPANEL_JWT_SECRET", "from-env")

	cfg, err := LoadAgent(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Listen)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoadAgentRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no operators", `server: {listen: ":5000"}`},
		{"plain password", `
auth:
  operators:
    - username: admin
      password_hash: secret
`},
		{"relative root", `
auth:
  operators:
    - username: admin
      password_hash: "` + testHash + `"
files:
  roots: [home]
`},
		{"half tls", `
server:
  tls_cert: /etc/cert.pem
auth:
  operators:
    - username: admin
      password_hash: "` + testHash + `"
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAgent(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadAgentMissingFile(t *testing.T) {
	_, err := LoadAgent(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConsoleDefaults(t *testing.T) {
	cfg, err := LoadConsole("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", cfg.AgentURL)
	assert.Equal(t, 5*time.Second, cfg.Poll.Metrics)
	assert.Zero(t, cfg.Poll.Services)
	assert.Equal(t, 3*time.Second, cfg.Notifications.SuccessTTL)
	assert.Equal(t, 5*time.Second, cfg.Notifications.ErrorTTL)
	assert.Equal(t, "/home", cfg.Files.StartPath)
	assert.Equal(t, 100, cfg.Logs.DefaultLines)
}

func TestLoadConsoleFromFile(t *testing.T) {
	path := writeConfig(t, `
agent_url: https://panel.example.com:5000
poll:
  services: 10s
notifications:
  error_ttl: 8s
logs:
  default_lines: 250
`)
	cfg, err := LoadConsole(path)
	require.NoError(t, err)
	assert.Equal(t, "https://panel.example.com:5000", cfg.AgentURL)
	assert.Equal(t, 10*time.Second, cfg.Poll.Services)
	assert.Equal(t, 8*time.Second, cfg.Notifications.ErrorTTL)
	assert.Equal(t, 3*time.Second, cfg.Notifications.SuccessTTL)
	assert.Equal(t, 250, cfg.Logs.DefaultLines)
}

func TestLoadConsoleRejectsBadURL(t *testing.T) {
	t.Setenv("WEBPANEL_AGENT_URL", "ftp://panel")
	_, err := LoadConsole("")
	assert.Error(t, err)
}

func TestLoadConsoleRejectsNegativeInterval(t *testing.T) {
	_, err := LoadConsole(writeConfig(t, "poll:\n  users: -1s\n"))
	assert.Error(t, err)
}
