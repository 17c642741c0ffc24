// Package cli is the command surface: a cobra tree mapping 1:1 onto the app
// handlers, plus the interactive device-code login view.
package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quasar/mcfleet/internal/app"
	"github.com/quasar/mcfleet/internal/config"
	"github.com/quasar/mcfleet/internal/core"
	"github.com/quasar/mcfleet/internal/msa"
	"github.com/quasar/mcfleet/internal/relay"
)

var (
	// Global flags
	verbose bool
	dataDir string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mcfleet",
	Short: "mcfleet - manage a fleet of game bot accounts",
	Long: `mcfleet manages game bot accounts and their server connections.

Accounts are registered offline or through the Microsoft device-code login,
credentials are cached and silently refreshed, and each account can run
concurrent connection instances against registered servers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The login view owns the terminal; it logs nowhere.
		if cmd.Name() == "login" {
			logger = zap.NewNop()
			return nil
		}
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// newApp builds the application context for one command invocation: config,
// auth provider, connector and a relay sink that prints to stdout.
func newApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if verbose {
		cfg.Verbose = true
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("preparing data dir: %w", err)
	}

	sink := relay.SinkFunc(func(key uuid.UUID, payload relay.Payload) error {
		switch payload.Kind {
		case relay.PayloadChat:
			fmt.Printf("[%s] %s\n", short(key), payload.Message)
		case relay.PayloadConnect:
			fmt.Printf("[%s] connected (%dms)\n", short(key), payload.Latency)
		case relay.PayloadDisconnect:
			fmt.Printf("[%s] disconnected: %s\n", short(key), payload.Reason)
		}
		return nil
	})

	return app.New(cfg,
		msa.NewClient(cfg.MSAClientID),
		core.NewTCPConnector(),
		sink, logger), nil
}

// short renders the first uuid segment, enough to tell instances apart in
// terminal output.
func short(id uuid.UUID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override the data directory")

	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(instanceCmd)
	rootCmd.AddCommand(versionsCmd)
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
