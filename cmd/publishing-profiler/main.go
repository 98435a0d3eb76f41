// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the publishing-profiler CLI.
// It profiles where an institution's corresponding-authored, federally
// funded articles are published: by publisher, journal, and funding agency,
// and how concentrated output is among publishers.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/publishing-profiler/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	verbose bool
	logger  = zap.NewNop()
)

// rootCmd is the base command for the publishing-profiler CLI.
var rootCmd = &cobra.Command{
	Use:   "publishing-profiler",
	Short: "Profile where an institution's federally funded research is published",
	Long: `publishing-profiler reads an institution's merged publication export,
selects the articles that are corresponding-authored at the institution and
funded by a US federal agency, and reports publisher, journal, and agency
breakdowns along with how few publishers account for a share of each year.

Runs write CSV snapshots next to the input and store their tables in a
SQLite run store for later reports and exports.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./publishing-profiler.yaml or ~/.config/publishing-profiler/publishing-profiler.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding one input directory per institution")
	rootCmd.PersistentFlags().String("store-dir", "", "directory of the run store (contains index/)")

	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("output.store_dir", rootCmd.PersistentFlags().Lookup("store-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("publishing-profiler")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "publishing-profiler"))
		}
	}

	setDefaults(types.DefaultConfig())

	viper.SetEnvPrefix("PUBLISHING_PROFILER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every scalar setting so environment variables can
// override keys that no config file sets.
func setDefaults(cfg types.ProfilerConfig) {
	viper.SetDefault("data_dir", cfg.DataDir)
	viper.SetDefault("lookup.file", cfg.Lookup.File)
	viper.SetDefault("lookup.key_column", cfg.Lookup.KeyColumn)
	viper.SetDefault("lookup.value_column", cfg.Lookup.ValueColumn)
	viper.SetDefault("analysis.targets", cfg.Analysis.Targets)
	viper.SetDefault("analysis.top_journals", cfg.Analysis.TopJournals)
	viper.SetDefault("output.snapshots", cfg.Output.Snapshots)
	viper.SetDefault("output.store_dir", cfg.Output.StoreDir)
}

// loadConfig decodes the merged flag, environment, and file settings over
// the defaults.
func loadConfig() (types.ProfilerConfig, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.ProfilerConfig{}, fmt.Errorf("decoding config: %w", err)
	}
	if len(cfg.Institutions) == 0 {
		cfg.Institutions = types.DefaultConfig().Institutions
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
