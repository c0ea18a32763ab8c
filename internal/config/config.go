package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoggingConfig contains logging settings shared by both binaries
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console|json
	File   string `yaml:"file"`
}

// readYAML decodes filename into out. An empty filename leaves out untouched.
func readYAML(filename string, out any) error {
	if strings.TrimSpace(filename) == "" {
		return nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func envOverride(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
