package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/high001/webpanel/internal/config"
	"github.com/high001/webpanel/internal/controllers"
	"github.com/high001/webpanel/internal/logging"
	"github.com/high001/webpanel/internal/middleware"
	"github.com/high001/webpanel/internal/routes"
	"github.com/high001/webpanel/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"vawter.tech/stopper"
)

const shutdownGrace = 5 * time.Second

func main() {
	var (
		configPath   string
		hashPassword bool
	)
	flag.StringVar(&configPath, "config", os.Getenv("WEBPANEL_CONFIG"), "path to the agent YAML config")
	flag.BoolVar(&hashPassword, "hash-password", false, "read a password from stdin and print its bcrypt hash for auth.operators")
	flag.Parse()

	if hashPassword {
		os.Exit(printHash())
	}

	cfg, err := config.LoadAgent(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("agent stopped")
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg *config.AgentConfig, logger zerolog.Logger) error {
	if logger.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	auth, err := services.InitAuthService(cfg.Auth, logging.Component(logger, "auth"))
	if err != nil {
		return err
	}

	runner := services.ExecRunner{}
	security := middleware.NewSecurityLogger(logger)
	stats := services.NewStatsCache(services.CollectDashboardStats, cfg.Metrics.CacheTTL, logging.Component(logger, "metrics"))
	hub := services.NewStatsHub(stats, auth, cfg.Metrics.BroadcastInterval, logging.Component(logger, "ws"))

	router := routes.NewRouter(routes.Controllers{
		Auth:      controllers.NewAuthController(auth, security, cfg.Server.TLSEnabled()),
		Metrics:   controllers.NewMetricsController(stats),
		Processes: controllers.NewProcessController(services.NewProcessService(), security),
		Systemd:   controllers.NewSystemdController(services.NewSystemdService(runner), security),
		Files:     controllers.NewFileController(services.NewFileService(cfg.Files), security),
		Logs:      controllers.NewLogController(services.NewLogService(cfg.Logs)),
		Users:     controllers.NewUserController(services.NewUserService(runner), security),
		Command:   controllers.NewCommandController(services.NewCommandService(cfg.Command, runner, logging.Component(logger, "command")), security),
		WebSocket: controllers.NewWebSocketController(hub, security, cfg.Security.AllowedOrigins, logging.Component(logger, "ws")),
	}, routes.RouterOptions{
		Security:    cfg.Security,
		TLS:         cfg.Server.TLSEnabled(),
		Auth:        auth,
		SecurityLog: security,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sctx := stopper.WithContext(ctx)

	sctx.Go(func(c *stopper.Context) error {
		return stats.Warm(c, cfg.Metrics.CacheTTL)
	})
	sctx.Go(hub.Run)
	sctx.Go(func(c *stopper.Context) error {
		return auth.RunJanitor(c, 10*time.Minute)
	})
	sctx.Go(func(c *stopper.Context) error {
		errc := make(chan error, 1)
		go func() {
			logger.Info().
				Str("listen", cfg.Server.Listen).
				Bool("tls", cfg.Server.TLSEnabled()).
				Str("config", cfg.LoadedFrom).
				Msg("agent listening")
			if cfg.Server.TLSEnabled() {
				errc <- srv.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
			} else {
				errc <- srv.ListenAndServe()
			}
		}()

		select {
		case err := <-errc:
			stop()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("http server: %w", err)
		case <-c.Stopping():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	})

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		sctx.Stop(shutdownGrace)
	}()
	return sctx.Wait()
}

func printHash() int {
	fmt.Fprint(os.Stderr, "password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		fmt.Fprintln(os.Stderr, "empty password")
		return 1
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(string(hash))
	return 0
}
