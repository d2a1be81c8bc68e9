package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/shiver1514/feishu-sync/internal/config"
	"github.com/shiver1514/feishu-sync/internal/engine"
	"github.com/shiver1514/feishu-sync/internal/feishu"
	"github.com/shiver1514/feishu-sync/internal/store"
	"github.com/shiver1514/feishu-sync/internal/trigger"
)

// version is set at build time via ldflags.
var version = "dev"

// defaultConfigPath is used when neither --config nor FEISHU_SYNC_CONFIG is set.
const defaultConfigPath = "feishu-sync.yaml"

// Global persistent flags, bound in newRootCmd.
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// app bundles everything a subcommand needs: the loaded config, the state
// store, the RemoteDrive adapter, the reconciliation engine, and the
// single-writer run lock every trigger shares. Built once in
// PersistentPreRunE and stashed on the command context, mirroring the
// teacher's CLIContext.
type app struct {
	cfgHolder   *config.Holder
	logger      *slog.Logger
	store       *store.Store
	engine      *engine.Engine
	coordinator *trigger.RunCoordinator
}

type appContextKey struct{}

func appFrom(ctx context.Context) *app {
	a, _ := ctx.Value(appContextKey{}).(*app)
	return a
}

// runFunc adapts engine.Engine.Run into trigger.RunFunc, translating the
// engine's full RunSummary into the narrow shape the trigger package needs.
func runFunc(e *engine.Engine) trigger.RunFunc {
	return func(ctx context.Context, dryRun bool) (trigger.RunSummary, error) {
		summary, err := e.Run(ctx, dryRun)
		if err != nil {
			return trigger.RunSummary{}, err
		}
		return trigger.RunSummary{FatalError: summary.FatalError, Errors: summary.Errors}, nil
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "feishu-sync",
		Short:   "Feishu Drive sync client",
		Long:    "A bidirectional sync client between a local directory and Feishu/Lark Drive.",
		Version: version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appContextKey{}, a))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit machine-readable JSON summaries")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable info-level logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

func buildApp(ctx context.Context) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	env := config.ReadEnvOverrides()
	path := config.ResolvePath(flagConfigPath, env, defaultConfigPath)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := buildLogger(cfg)

	st, err := store.New(ctx, cfg.StateDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Auth.Timeout()}
	authenticator := feishu.NewAuthenticator(httpClient, cfg.Auth.AppID, cfg.Auth.AppSecret, cfg.Auth.UserTokenFile, feishu.DefaultPriority, logger)
	client := feishu.NewClient(feishu.DefaultBaseURL, httpClient, authenticator, logger, "feishu-sync/"+version)
	drive := feishu.NewDrive(client, logger)

	eng := engine.New(st, drive, engine.SlogSink{Logger: logger}, cfg.Sync.LocalRoot, cfg.Sync, config.DefaultMaxRetryAttempts)

	return &app{
		cfgHolder:   config.NewHolder(cfg),
		logger:      logger,
		store:       st,
		engine:      eng,
		coordinator: trigger.NewRunCoordinator(),
	}, nil
}

// buildLogger picks a log level from cfg.LogLevel, overridden by --verbose /
// --quiet, and a text handler when stderr is a terminal versus a JSON
// handler with source locations when it isn't (piped to a log collector).
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	if flagVerbose {
		level = slog.LevelInfo
	}
	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		// Interactive terminal: drop the source-line noise a human doesn't
		// need; piped/non-tty output keeps AddSource for log aggregation.
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	opts.AddSource = true
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
