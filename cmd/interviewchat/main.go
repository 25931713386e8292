package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/prepdeck/interviewchat/internal/api"
	"github.com/prepdeck/interviewchat/internal/auth"
	"github.com/prepdeck/interviewchat/internal/controller"
	"github.com/prepdeck/interviewchat/internal/directory"
	"github.com/prepdeck/interviewchat/internal/infrastructure/config"
	"github.com/prepdeck/interviewchat/internal/infrastructure/monitoring"
	"github.com/prepdeck/interviewchat/internal/logging"
	"github.com/prepdeck/interviewchat/internal/types"
)

const tokenEnv = "INTERVIEW_TOKEN"

func main() {
	cfg := config.LoadOrDefault()

	apiBase := flag.String("api", cfg.API.BaseURL, "REST collaborator base URL")
	socketURL := flag.String("socket", cfg.Socket.URL, "Interview websocket URL")
	sessionHint := flag.String("session", "", "Session id to open at startup")
	profilePath := flag.String("profile", "", "YAML profile used by /new")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging")
	debugAddr := flag.String("debug", "", "Serve debug/metrics on this address")
	flag.Parse()

	cfg.API.BaseURL = *apiBase
	cfg.Socket.URL = *socketURL
	cfg.Logging.Development = *dev
	if *debugAddr != "" {
		cfg.Debug.Enabled = true
		cfg.Debug.Addr = *debugAddr
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *sessionHint, *profilePath); err != nil {
		logger.Error("exiting on error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger, sessionHint, profilePath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := monitoring.New(registry)
	tokens := auth.EnvSource(tokenEnv)

	var profile types.Profile
	if profilePath != "" {
		p, err := config.LoadProfile(profilePath)
		if err != nil {
			return fmt.Errorf("profile: %w", err)
		}
		profile = p
	}

	dir := directory.New(directory.Options{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		MaxRetries: cfg.API.MaxRetries,
		Tokens:     tokens,
		Logger:     logger,
		Metrics:    metrics,
	})

	ui := newConsoleUI(os.Stdout)
	ctrl := controller.New(controller.Options{
		SocketURL:      cfg.Socket.URL,
		Directory:      dir,
		Tokens:         tokens,
		UI:             ui,
		ReconnectDelay: cfg.Socket.ReconnectDelay,
		WriteTimeout:   cfg.Socket.WriteTimeout,
		Logger:         logger,
		Metrics:        metrics,
	})
	defer ctrl.Close()

	if cfg.Debug.Enabled {
		debug := api.New(api.Options{
			Addr:     cfg.Debug.Addr,
			Source:   ctrl,
			Registry: registry,
			Logger:   logger,
		})
		go func() {
			if err := debug.Run(); err != nil {
				logger.Error("debug server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			debug.Shutdown(shutdownCtx)
		}()
	}

	if err := ctrl.Start(ctx, sessionHint); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	return repl(ctx, ctrl, ui, profile)
}

// repl reads commands and chat text from stdin until EOF or signal.
func repl(ctx context.Context, ctrl *controller.Controller, ui *consoleUI, profile types.Profile) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "/quit" {
				return nil
			}
			if err := dispatch(ctx, ctrl, ui, profile, line); err != nil {
				ui.printf("error: %v", err)
			}
		}
	}
}

func dispatch(ctx context.Context, ctrl *controller.Controller, ui *consoleUI, profile types.Profile, line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/sessions":
		// Routed through the controller so a vanished live session is
		// reconciled, not left dangling.
		return ctrl.RefreshSessions(ctx)
	case "/switch":
		if arg == "" {
			return fmt.Errorf("usage: /switch <session-id>")
		}
		return ctrl.SwitchTo(ctx, strings.TrimSpace(arg))
	case "/new":
		if profile.UserName == "" {
			return fmt.Errorf("starting a session needs a profile, pass -profile <file.yaml>")
		}
		_, err := ctrl.CreateSession(ctx, profile)
		return err
	case "/delete":
		if arg == "" {
			return fmt.Errorf("usage: /delete <session-id>")
		}
		return ctrl.DeleteSession(ctx, strings.TrimSpace(arg))
	case "/help":
		ui.printf("commands: /sessions /switch <id> /new /delete <id> /quit, anything else is sent as a message")
		return nil
	default:
		if strings.HasPrefix(cmd, "/") {
			return fmt.Errorf("unknown command %q, try /help", cmd)
		}
		return ctrl.Send(ctx, line)
	}
}
