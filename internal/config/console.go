package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// ConsoleConfig represents the operator console configuration
type ConsoleConfig struct {
	AgentURL       string             `yaml:"agent_url"`
	RequestTimeout time.Duration      `yaml:"request_timeout"`
	Poll           PollConfig         `yaml:"poll"`
	Notifications  NotificationConfig `yaml:"notifications"`
	Logs           ConsoleLogsConfig  `yaml:"logs"`
	Files          ConsoleFilesConfig `yaml:"files"`
	Logging        LoggingConfig      `yaml:"logging"`
}

// PollConfig holds refresh intervals. Zero means on-demand only.
type PollConfig struct {
	Metrics   time.Duration `yaml:"metrics"`
	Processes time.Duration `yaml:"processes"`
	Services  time.Duration `yaml:"services"`
	Users     time.Duration `yaml:"users"`
	Logs      time.Duration `yaml:"logs"`
}

// NotificationConfig holds banner lifetimes per kind
type NotificationConfig struct {
	SuccessTTL time.Duration `yaml:"success_ttl"`
	ErrorTTL   time.Duration `yaml:"error_ttl"`
}

type ConsoleLogsConfig struct {
	DefaultFile  string `yaml:"default_file"`
	DefaultLines int    `yaml:"default_lines"`
}

type ConsoleFilesConfig struct {
	StartPath   string `yaml:"start_path"`
	DownloadDir string `yaml:"download_dir"`
}

// DefaultConsole returns the configuration used when no file is given
func DefaultConsole() ConsoleConfig {
	return ConsoleConfig{
		AgentURL:       "http://localhost:5000",
		RequestTimeout: 15 * time.Second,
		Poll: PollConfig{
			Metrics:   5 * time.Second,
			Processes: 5 * time.Second,
		},
		Notifications: NotificationConfig{
			SuccessTTL: 3 * time.Second,
			ErrorTTL:   5 * time.Second,
		},
		Logs: ConsoleLogsConfig{
			DefaultFile:  "/var/log/syslog",
			DefaultLines: 100,
		},
		Files: ConsoleFilesConfig{
			StartPath:   "/home",
			DownloadDir: ".",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(os.TempDir(), "webpanel-console.log"),
		},
	}
}

// LoadConsole loads the console configuration from a YAML file.
// WEBPANEL_AGENT_URL overrides agent_url.
func LoadConsole(filename string) (*ConsoleConfig, error) {
	cfg := DefaultConsole()
	if err := readYAML(filename, &cfg); err != nil {
		return nil, err
	}
	envOverride(&cfg.AgentURL, "WEBPANEL_AGENT_URL")

	def := DefaultConsole()
	cfg.RequestTimeout = durationOr(cfg.RequestTimeout, def.RequestTimeout)
	cfg.Notifications.SuccessTTL = durationOr(cfg.Notifications.SuccessTTL, def.Notifications.SuccessTTL)
	cfg.Notifications.ErrorTTL = durationOr(cfg.Notifications.ErrorTTL, def.Notifications.ErrorTTL)
	if cfg.Logs.DefaultLines <= 0 {
		cfg.Logs.DefaultLines = def.Logs.DefaultLines
	}
	if cfg.Files.StartPath == "" {
		cfg.Files.StartPath = def.Files.StartPath
	}
	if cfg.Files.DownloadDir == "" {
		cfg.Files.DownloadDir = def.Files.DownloadDir
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the agent URL and interval sanity
func (c *ConsoleConfig) Validate() error {
	u, err := url.Parse(c.AgentURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("agent_url must be an absolute http(s) URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("agent_url must use http or https")
	}
	for _, d := range []time.Duration{c.Poll.Metrics, c.Poll.Processes, c.Poll.Services, c.Poll.Users, c.Poll.Logs} {
		if d < 0 {
			return errors.New("poll intervals must not be negative")
		}
	}
	return nil
}
