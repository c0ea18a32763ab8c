package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AgentConfig represents the complete System Control Agent configuration
type AgentConfig struct {
	Server     ServerConfig   `yaml:"server"`
	Auth       AuthConfig     `yaml:"auth"`
	Files      FilesConfig    `yaml:"files"`
	Logs       LogsConfig     `yaml:"logs"`
	Command    CommandConfig  `yaml:"command"`
	Security   SecurityConfig `yaml:"security"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Logging    LoggingConfig  `yaml:"logging"`
	LoadedFrom string         `yaml:"-"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Listen  string `yaml:"listen"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

// TLSEnabled reports whether both certificate and key are configured
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCert != "" && s.TLSKey != ""
}

// Operator is a console login. PasswordHash is a bcrypt hash.
type Operator struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// AuthConfig contains session token settings
type AuthConfig struct {
	Operators  []Operator    `yaml:"operators"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SecretFile string        `yaml:"secret_file"` // used when jwt_secret is empty
	TokenTTL   time.Duration `yaml:"token_ttl"`
}

// FilesConfig restricts the remote file browser
type FilesConfig struct {
	Roots         []string `yaml:"roots"`
	DefaultPath   string   `yaml:"default_path"`
	UploadDefault string   `yaml:"upload_default"`
	MaxUploadMB   int64    `yaml:"max_upload_mb"`
}

// LogsConfig restricts the log viewer
type LogsConfig struct {
	Dir      string   `yaml:"dir"`
	Allowed  []string `yaml:"allowed"`
	MaxLines int      `yaml:"max_lines"`
}

// CommandConfig controls ad-hoc command execution
type CommandConfig struct {
	Shell     string        `yaml:"shell"`
	Timeout   time.Duration `yaml:"timeout"`
	Blocklist []string      `yaml:"blocklist"`
}

// SecurityConfig contains rate limiting and CORS settings
type SecurityConfig struct {
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	LoginPerMinute    float64  `yaml:"login_per_minute"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	AllowedIPs        []string `yaml:"allowed_ips"` // empty allows every address
}

// MetricsConfig contains stats cache and websocket settings
type MetricsConfig struct {
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// DefaultAgent returns the configuration used when no file is given
func DefaultAgent() AgentConfig {
	return AgentConfig{
		Server: ServerConfig{Listen: "localhost:5000"},
		Auth:   AuthConfig{TokenTTL: 12 * time.Hour},
		Files: FilesConfig{
			Roots:         []string{"/home", "/tmp"},
			DefaultPath:   "/home",
			UploadDefault: "/tmp",
			MaxUploadMB:   512,
		},
		Logs: LogsConfig{
			Dir:      "/var/log",
			Allowed:  []string{"/var/log/syslog", "/var/log/auth.log", "/var/log/messages", "/var/log/kern.log"},
			MaxLines: 1000,
		},
		Command: CommandConfig{
			Shell:     "/bin/sh",
			Timeout:   30 * time.Second,
			Blocklist: []string{"rm -rf", "mkfs", "dd if=", "format", "fdisk"},
		},
		Security: SecurityConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			LoginPerMinute:    5,
		},
		Metrics: MetricsConfig{
			CacheTTL:          time.Second,
			BroadcastInterval: time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// LoadAgent loads the agent configuration from a YAML file. Fields missing from
// the file keep their defaults. WEBPANEL_LISTEN and WEBPANEL_JWT_SECRET override
// the file.
func LoadAgent(filename string) (*AgentConfig, error) {
	cfg := DefaultAgent()
	if err := readYAML(filename, &cfg); err != nil {
		return nil, err
	}
	cfg.LoadedFrom = filename
	envOverride(&cfg.Server.Listen, "WEBPANEL_LISTEN")
	envOverride(&cfg.Auth.JWTSecret, "WEBPANEL_JWT_SECRET")
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AgentConfig) applyDefaults() {
	def := DefaultAgent()
	if strings.TrimSpace(c.Server.Listen) == "" {
		c.Server.Listen = def.Server.Listen
	}
	c.Auth.TokenTTL = durationOr(c.Auth.TokenTTL, def.Auth.TokenTTL)
	if c.Files.DefaultPath == "" {
		c.Files.DefaultPath = def.Files.DefaultPath
	}
	if c.Files.UploadDefault == "" {
		c.Files.UploadDefault = def.Files.UploadDefault
	}
	if c.Files.MaxUploadMB <= 0 {
		c.Files.MaxUploadMB = def.Files.MaxUploadMB
	}
	if c.Logs.Dir == "" {
		c.Logs.Dir = def.Logs.Dir
	}
	if c.Logs.MaxLines <= 0 {
		c.Logs.MaxLines = def.Logs.MaxLines
	}
	if c.Command.Shell == "" {
		c.Command.Shell = def.Command.Shell
	}
	c.Command.Timeout = durationOr(c.Command.Timeout, def.Command.Timeout)
	if c.Security.RequestsPerSecond <= 0 {
		c.Security.RequestsPerSecond = def.Security.RequestsPerSecond
	}
	if c.Security.Burst <= 0 {
		c.Security.Burst = def.Security.Burst
	}
	if c.Security.LoginPerMinute <= 0 {
		c.Security.LoginPerMinute = def.Security.LoginPerMinute
	}
	c.Metrics.CacheTTL = durationOr(c.Metrics.CacheTTL, def.Metrics.CacheTTL)
	c.Metrics.BroadcastInterval = durationOr(c.Metrics.BroadcastInterval, def.Metrics.BroadcastInterval)
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// Validate rejects configurations the agent cannot serve safely
func (c *AgentConfig) Validate() error {
	if len(c.Auth.Operators) == 0 {
		return errors.New("auth.operators: at least one operator is required")
	}
	for i, op := range c.Auth.Operators {
		if strings.TrimSpace(op.Username) == "" {
			return fmt.Errorf("auth.operators[%d]: username is required", i)
		}
		if !strings.HasPrefix(op.PasswordHash, "$2") {
			return fmt.Errorf("auth.operators[%d]: password_hash must be a bcrypt hash", i)
		}
	}
	for _, root := range c.Files.Roots {
		if !strings.HasPrefix(root, "/") {
			return fmt.Errorf("files.roots: %q is not absolute", root)
		}
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return errors.New("server: tls_cert and tls_key must be set together")
	}
	if c.Logs.MaxLines < 1 {
		return errors.New("logs.max_lines must be positive")
	}
	return nil
}
