package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eyalbarash/whatsapp-chat-storage/internal/config"
	"github.com/eyalbarash/whatsapp-chat-storage/internal/greenapi"
	"github.com/eyalbarash/whatsapp-chat-storage/internal/store"
	"github.com/eyalbarash/whatsapp-chat-storage/internal/sync"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "wachat",
	Short: "WhatsApp chat archive tool",
	Long: `wachat archives WhatsApp conversations into a local SQLite database
via the Green API, including contacts, groups and media files.

Run "wachat sync-full" for a deep, resumable sync of every chat, and
"wachat sync-incremental" (optionally on a schedule) to keep the archive
fresh.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create data directory %s: %w", cfg.Data.DataDir, err)
		}
		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// openStore opens the archive database, creating the schema on first use.
func openStore() (*store.Store, error) {
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.InitSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return st, nil
}

// newAPIClient builds a Green API client from the configured credentials.
func newAPIClient() (*greenapi.Client, error) {
	if !cfg.HasCredentials() {
		return nil, fmt.Errorf(`Green API credentials not configured.

Set GREENAPI_ID_INSTANCE and GREENAPI_API_TOKEN in the environment, or add
to %s:
  [api]
  id_instance = "1101123456"
  api_token = "..."`, filepath.Join(cfg.HomeDir, "config.toml"))
	}

	opts := []greenapi.ClientOption{
		greenapi.WithLogger(logger),
		greenapi.WithLimiter(greenapi.NewLimiter(cfg.RequestInterval())),
	}
	if cfg.API.BaseURL != "" {
		opts = append(opts, greenapi.WithBaseURL(cfg.API.BaseURL))
	}
	return greenapi.NewClient(cfg.API.IDInstance, cfg.API.APIToken, opts...), nil
}

// newSyncer wires a Syncer from the config's sync tuning.
func newSyncer(client greenapi.API, st *store.Store) *sync.Syncer {
	opts := sync.DefaultOptions()
	opts.MessagesPerChat = cfg.Sync.MessagesPerChat
	opts.IncrementalMessages = cfg.Sync.IncrementalMessages
	opts.ChatDelay = cfg.ChatDelay()
	opts.BatchPause = cfg.BatchPause()
	opts.BatchSize = cfg.Sync.BatchSize
	opts.CheckpointPath = cfg.CheckpointPath()
	opts.StatusPath = cfg.IncrementalStatusPath()
	return sync.New(client, st, opts).WithLogger(logger)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.wachat/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
