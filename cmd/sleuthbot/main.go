package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/agiledigital-labs/sleuthbot/internal/bus"
	"github.com/agiledigital-labs/sleuthbot/internal/channel"
	"github.com/agiledigital-labs/sleuthbot/internal/config"
	"github.com/agiledigital-labs/sleuthbot/internal/dispatch"
	"github.com/agiledigital-labs/sleuthbot/internal/domain"
	"github.com/agiledigital-labs/sleuthbot/internal/flow"
	"github.com/agiledigital-labs/sleuthbot/internal/inspector"
	"github.com/agiledigital-labs/sleuthbot/internal/metrics"
	"github.com/agiledigital-labs/sleuthbot/internal/notify"
	"github.com/agiledigital-labs/sleuthbot/internal/upstream"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "sleuthbot",
		Short: "SleuthBot: chat-ops incident investigator",
		Long: "SleuthBot listens for /investigate requests in chat, fans the target out " +
			"to a set of inspectors and threads their findings back as replies.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config.yaml")

	root.AddCommand(initCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", configPath)
			}
			if err := config.Save(configPath, config.Default()); err != nil {
				return err
			}
			logger.Info("config written", "path", configPath)
			return nil
		},
	}
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start the bot (channels, inspectors, notifier)",
		Long:  "Starts all enabled chat channels, the inspector fleet and the notifier. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = buildLogger(cfg.General)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(cfg.Bus.QueueSize, logger)
	defer messageBus.Close()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	go func() {
		if err := metrics.Serve(ctx, cfg.General.MetricsAddr, logger); err != nil {
			logger.Error("metrics server error", "err", err)
		}
	}()

	gateway := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, logger)
	reporter := inspector.NewBusReporter(messageBus)
	resolver := inspector.NewResolver(gateway, cfg.Investigation.TagKey, cfg.Investigation.ResourceTypeFilters, logger)

	extractors := make(map[string]inspector.DetailExtractor, len(cfg.Investigation.AuditSources))
	for _, source := range cfg.Investigation.AuditSources {
		extractors[source] = inspector.FunctionDetailExtractor
	}

	inspectors := []inspector.Inspector{
		inspector.NewWelcomeInspector(reporter),
		inspector.NewDeploymentInspector(gateway, reporter, logger),
		inspector.NewAuditInspector(gateway, reporter, extractors, inspector.AuditOptions{
			ChunkSize: cfg.Investigation.ChunkSize,
			Fetch: flow.FetchOptions{
				PageDelay: cfg.Investigation.PageDelay,
				MaxPages:  cfg.Investigation.MaxPages,
			},
		}, logger),
		inspector.NewLogInspector(gateway, resolver, reporter, inspector.LogsOptions{
			ResultLimit:    cfg.Investigation.LogResultLimit,
			LogGroupPrefix: cfg.Investigation.LogGroupPrefix,
			Poll: flow.PollOptions{
				MaxAttempts: cfg.Investigation.PollMaxAttempts,
				Delay:       cfg.Investigation.PollDelay,
			},
		}, logger),
		inspector.NewMetricsInspector(gateway, resolver, reporter, logger),
	}
	for _, ins := range inspectors {
		harness := inspector.NewHarness(ins, messageBus, reporter, logger)
		go harness.Run(ctx)
	}
	logger.Info("inspector fleet started", "inspectors", len(inspectors))

	dispatcher := dispatch.New(messageBus, cfg.Investigation.Lookback, logger)

	var posters []domain.Poster
	if cfg.Slack.Enabled {
		slackCh := channel.NewSlack(channel.SlackConfig{
			BotToken: cfg.Slack.BotToken,
			AppToken: cfg.Slack.AppToken,
			Command:  cfg.Slack.Command,
			Logger:   logger,
		})
		posters = append(posters, slackCh)
		go func() {
			if err := slackCh.Start(ctx, dispatcher); err != nil {
				logger.Error("slack channel error", "err", err)
			}
		}()
		logger.Info("slack channel enabled", "command", cfg.Slack.Command)
	}
	if cfg.Telegram.Enabled {
		telegramCh := channel.NewTelegram(channel.TelegramConfig{
			Token:  cfg.Telegram.Token,
			Logger: logger,
		})
		posters = append(posters, telegramCh)
		go func() {
			if err := telegramCh.Start(ctx, dispatcher); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
	}

	notifier := notify.New(messageBus, posters, logger)
	go notifier.Run(ctx)

	logger.Info("gateway started. Press Ctrl+C to stop.")
	<-ctx.Done()
	logger.Info("shutting down gateway...")
	return nil
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and report what would run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Info("config ok", "path", configPath)
			logger.Info("channels", "slack", cfg.Slack.Enabled, "telegram", cfg.Telegram.Enabled)
			logger.Info("upstream", "baseURL", cfg.Upstream.BaseURL, "timeout", cfg.Upstream.Timeout)
			logger.Info("investigation",
				"lookback", cfg.Investigation.Lookback,
				"chunkSize", cfg.Investigation.ChunkSize,
				"pollMaxAttempts", cfg.Investigation.PollMaxAttempts)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("sleuthbot " + version)
		},
	}
}

func buildLogger(cfg config.GeneralConfig) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
