package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/high001/webpanel/internal/client"
	"github.com/high001/webpanel/internal/config"
	"github.com/high001/webpanel/internal/console"
	"github.com/high001/webpanel/internal/logging"
	"github.com/high001/webpanel/internal/models"
)

func main() {
	var (
		configPath string
		watch      bool
		user       string
	)
	flag.StringVar(&configPath, "config", "", "path to the console YAML config")
	flag.BoolVar(&watch, "watch", false, "print live stats instead of starting the console")
	flag.StringVar(&user, "user", "", "operator for -watch; the password is read from WEBPANEL_PASSWORD")
	flag.Parse()

	cfg, err := config.LoadConsole(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(cfg.Logging, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	c, err := client.New(cfg.AgentURL,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithLogger(logging.Component(logger, "client")))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if watch {
		code := runWatch(c, user, logger)
		closer.Close()
		os.Exit(code)
	}

	m := console.New(*cfg, c, console.WithLogger(logging.Component(logger, "console")))
	p := tea.NewProgram(m, tea.WithAltScreen())
	c.Session().OnTeardown(func(reason error) {
		p.Send(console.SessionEndedMsg{Err: reason})
	})

	if _, err := p.Run(); err != nil {
		logger.Error().Err(err).Msg("console exited")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if c.Session().Active() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := c.Logout(ctx); err != nil {
			logger.Warn().Err(err).Msg("logout failed")
		}
	}
}

func runWatch(c *client.Client, user string, logger zerolog.Logger) int {
	password := os.Getenv("WEBPANEL_PASSWORD")
	if user == "" || password == "" {
		fmt.Fprintln(os.Stderr, "-watch needs -user and WEBPANEL_PASSWORD")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Login(ctx, user, password); err != nil {
		fmt.Fprintln(os.Stderr, client.MessageOr(err, err.Error()))
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = c.Logout(ctx)
	}()

	err := c.StreamStats(ctx, func(s *models.DashboardStats) {
		fmt.Printf("%s  %-16s cpu %5.1f%%  mem %s/%s  disk %5.1f%%  up %dd %dh %dm\n",
			time.Now().Format(time.TimeOnly), s.Hostname, s.CPU.Percent,
			humanize.IBytes(s.Memory.Used), humanize.IBytes(s.Memory.Total),
			s.Disk.Percent, s.Uptime.Days, s.Uptime.Hours, s.Uptime.Minutes)
	})
	if err != nil {
		logger.Error().Err(err).Msg("stats stream ended")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
