package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mariohealth/marioserve/pkg/config"
	"github.com/mariohealth/marioserve/pkg/engine"
)

var (
	cfgFile  string
	dataPath string
	logLevel string

	rootCmd = &cobra.Command{
		Use:   "mariosearch",
		Short: "mariosearch: one-shot healthcare search queries",
		Long: `mariosearch loads a snapshot once and answers a single query with
JSON on stdout. It uses the same config file and data source as marioserve.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
	}
)

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the user config dir)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "snapshot file, overrides the configured source")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

// loadEngine reads the config and performs the initial fetch.
func loadEngine(ctx context.Context) (*engine.Engine, *config.Config, error) {
	cfg, _, err := config.LoadConfigWithPriority(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.New(cfg.NewSource(dataPath, nil), cfg.EngineOptions())
	if err != nil {
		return nil, nil, err
	}
	if err := eng.Refresh(ctx); err != nil {
		return nil, nil, fmt.Errorf("loading data: %w", err)
	}
	return eng, cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
