package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/high001/webpanel/internal/config"
	"github.com/high001/webpanel/internal/models"
)

var (
	ErrEmptyCommand   = errors.New("command required")
	ErrCommandBlocked = errors.New("command not allowed for security reasons")
)

// CommandService runs ad-hoc shell commands behind a pattern blocklist
type CommandService struct {
	shell     string
	timeout   time.Duration
	blocklist []string
	runner    Runner
	logger    zerolog.Logger
}

func NewCommandService(cfg config.CommandConfig, runner Runner, logger zerolog.Logger) *CommandService {
	blocklist := make([]string, 0, len(cfg.Blocklist))
	for _, pattern := range cfg.Blocklist {
		if p := strings.ToLower(strings.TrimSpace(pattern)); p != "" {
			blocklist = append(blocklist, p)
		}
	}
	return &CommandService{
		shell:     cfg.Shell,
		timeout:   cfg.Timeout,
		blocklist: blocklist,
		runner:    runner,
		logger:    logger,
	}
}

// Blocked reports whether command contains any blocklisted pattern,
// case-insensitively
func (cs *CommandService) Blocked(command string) bool {
	lower := strings.ToLower(command)
	for _, pattern := range cs.blocklist {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// Execute runs command through the configured shell. A non-zero exit status
// is a successful execution; only blocked, empty and timed out commands fail.
func (cs *CommandService) Execute(ctx context.Context, command string) (*models.CommandResult, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}
	if cs.Blocked(command) {
		cs.logger.Warn().Str("command", command).Msg("blocked command rejected")
		return nil, ErrCommandBlocked
	}

	if cs.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cs.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := cs.runner.Run(ctx, "", cs.shell, "-c", command)
	if err != nil {
		return nil, err
	}
	cs.logger.Info().
		Str("command", command).
		Int("returncode", res.ExitCode).
		Dur("took", time.Since(start)).
		Msg("command executed")

	return &models.CommandResult{
		Success:    true,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		ReturnCode: res.ExitCode,
	}, nil
}
