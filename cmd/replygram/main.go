package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/replygram/replygram/internal/api"
	"github.com/replygram/replygram/internal/auth"
	"github.com/replygram/replygram/internal/models"
	"github.com/replygram/replygram/internal/notify"
	"github.com/replygram/replygram/internal/pipeline"
	"github.com/replygram/replygram/internal/platform"
	"github.com/replygram/replygram/internal/responder"
	"github.com/replygram/replygram/internal/storage"
	"github.com/replygram/replygram/pkg/config"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "replygram",
		Short: "Auto-responder for comments on social media posts",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	rootCmd.AddCommand(serveCmd(), loginCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    storage.Storage
	client   platform.Client
	sessions *auth.Manager
	pipeline *pipeline.Pipeline
}

func buildApp() (*app, error) {
	godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var store storage.Storage
	switch cfg.Database.Driver {
	case "memory":
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	case "postgres":
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	default:
		logger.Info("Using SQLite storage", zap.String("path", cfg.Database.Path))
		store, err = storage.NewSQLiteStorage(cfg.Database.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	var client platform.Client
	if cfg.Platform.GatewayURL != "" {
		client = platform.NewGatewayClient(cfg.Platform.GatewayURL)
	} else {
		logger.Warn("No platform gateway configured, using the in-memory fake client")
		client = platform.NewFakeClient()
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Telegram.Token != "" {
		notifier, err = notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create notifier: %w", err)
		}
	}

	var resp responder.Responder = responder.StaticResponder{}
	if cfg.OpenAI.APIKey != "" {
		resp = responder.NewGPTResponder(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			cfg.OpenAI.MaxTokens,
			cfg.OpenAI.Temperature,
			logger,
		)
	}

	sessions := auth.NewManager(client, store, store, logger)
	pipe := pipeline.New(sessions, client, store, store, resp, notifier, cfg.Poll, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		client:   client,
		sessions: sessions,
		pipeline: pipe,
	}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.logger.Sync()
			defer a.store.Close()

			server := api.NewServer(a.sessions, a.pipeline, a.client, a.store, a.logger)
			a.logger.Info("Listening", zap.String("addr", a.cfg.Server.Addr))
			return http.ListenAndServe(a.cfg.Server.Addr, server.Handler())
		},
	}
}

// loginCmd bootstraps a session for one account interactively, so the
// service can later run on the persisted token alone.
func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log an account in and persist its session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.logger.Sync()
			defer a.store.Close()

			reader := bufio.NewReader(os.Stdin)
			fmt.Print("Username: ")
			username, _ := reader.ReadString('\n')
			username = strings.TrimSpace(username)
			fmt.Print("Password: ")
			password, _ := reader.ReadString('\n')
			password = strings.TrimSpace(password)

			if username == "" || password == "" {
				return fmt.Errorf("username and password are required")
			}

			ctx := context.Background()
			if err := a.store.UpsertAccount(ctx, &models.Account{
				Username: username,
				Password: password,
			}); err != nil {
				return fmt.Errorf("failed to save account: %w", err)
			}

			outcome, err := a.sessions.AcquireSession(ctx, username)
			if err != nil {
				return err
			}
			if !outcome.OK() {
				return fmt.Errorf("login failed: %s", outcome.Status)
			}

			fmt.Println("Session saved.")
			return nil
		},
	}
}
