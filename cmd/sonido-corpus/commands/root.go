package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-corpus/chords"
	"github.com/RyanBlaney/sonido-corpus/config"
	"github.com/RyanBlaney/sonido-corpus/library"
	"github.com/RyanBlaney/sonido-corpus/logging"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "sonido-corpus",
	Short: "Synthetic pitch-transcription corpus generator",
	Long: `Composes random multi-instrument passages from sample recordings,
renders them over background noise and turns them into log-mel features
paired with per-frame onset/sustain labels.

Settings come from a TOML file (--config) layered over the built-in defaults.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, ok := logging.ParseLevel(logLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", logLevel)
		}
		logger := logging.NewDefaultLogger()
		logger.SetLevel(level)
		logging.SetGlobalLogger(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(chordsCmd)
	rootCmd.AddCommand(libraryCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadInputs builds the read-only sample set and chord catalog every
// generator shares.
func loadInputs(ctx context.Context, cfg *config.Config) (*library.Set, *chords.Catalog, error) {
	logger := logging.GetGlobalLogger()

	set, err := library.LoadSet(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load samples: %w", err)
	}

	catalog, err := loadCatalog(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return set, catalog, nil
}

func loadCatalog(ctx context.Context, cfg *config.Config) (*chords.Catalog, error) {
	logger := logging.GetGlobalLogger()

	src, err := chords.NewSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	catalog, err := chords.NewCatalog(ctx, src, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build chord catalog: %w", err)
	}
	return catalog, nil
}
