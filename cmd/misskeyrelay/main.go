package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"misskeyrelay/internal/config"
	"misskeyrelay/internal/delivery"
	"misskeyrelay/internal/domain"
	"misskeyrelay/internal/note"
	"misskeyrelay/internal/relay"
	"misskeyrelay/internal/stream"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "misskeyrelay",
		Short: "Relay a Misskey user's media notes to a webhook",
		Long: `misskeyrelay subscribes to the Misskey streaming API, picks notes with
attachments posted by one user, and posts a summary to a webhook.
Secrets come from MISSKEY_HOST, MISSKEY_TOKEN, TARGET_USER_ID and DISCORD_WEBHOOK_URL.`,
		SilenceUsage: true,
		RunE:         runRelay,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional path to config.yaml")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the relay (default)",
		RunE:  runRelay,
	})
	root.AddCommand(initCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(daemonCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := delivery.NewSink(delivery.SinkConfig{
		Kind:    cfg.Webhook.Kind,
		URL:     cfg.Webhook.URL,
		Timeout: cfg.Webhook.Timeout,
	})
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}

	manager := stream.NewManager(stream.Config{
		Host:           cfg.Misskey.Host,
		Token:          cfg.Misskey.Token,
		Channel:        cfg.Misskey.Channel,
		SubscriptionID: cfg.Misskey.SubscriptionID,
		DialTimeout:    cfg.Misskey.DialTimeout,
		Logger:         logger,
	})

	loop := relay.NewLoop(relay.LoopConfig{
		Connect: func(ctx context.Context) (domain.Stream, error) {
			conn, err := manager.Connect(ctx)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		Filter: note.NewFilter(cfg.Misskey.TargetUserID),
		Formatter: note.NewFormatter(note.FormatterConfig{
			Host:            cfg.Misskey.Host,
			NoteLabel:       cfg.Format.NoteLabel,
			AttachmentLabel: cfg.Format.AttachmentLabel,
		}),
		Sink:             sink,
		SubscriptionID:   cfg.Misskey.SubscriptionID,
		Interval:         cfg.Relay.Interval,
		IdleWait:         cfg.Relay.IdleWait,
		ReconnectOnIdle:  cfg.Relay.ReconnectOnIdle,
		ReconnectOnClose: cfg.Relay.ReconnectOnClose,
		Logger:           logger,
	})

	logger.Info("starting relay", "version", version, "host", cfg.Misskey.Host, "channel", cfg.Misskey.Channel)
	if err := loop.Run(ctx); err != nil {
		return err
	}
	logger.Info("relay terminated")
	return nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists: %s", path)
			}
			if err := config.Save(path, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", path)
			return nil
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return config.ExpandPath(configPath)
	}
	return config.DefaultConfigPath()
}

// loadConfig reads --config, or the default file when it exists, then the
// environment. With neither file present the environment alone is used.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath()); err == nil {
			path = config.DefaultConfigPath()
		}
	}
	return config.Load(path)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective config with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, err := yaml.Marshal(config.Sanitize(cfg))
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
