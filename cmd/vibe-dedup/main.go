// Package main provides the vibe-dedup command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// logger is configured by the root command before any subcommand runs.
var logger = zap.NewNop()

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var usage usageError
		if errors.As(err, &usage) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

// usageError marks errors caused by invalid command-line input.
type usageError struct{ error }

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "vibe-dedup",
		Short: "Content-based duplicate detection for audio files",
		Long: `vibe-dedup fingerprints audio files by size and sampled content and
skips downloads whose content is already present in your library.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cfgFile); err != nil {
				return err
			}
			l, err := newLogger(verbose)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ~/.vibe-dedup.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log progress and per-file details to stderr")
	pf.Int64("sample-size", 0, "Bytes sampled from each end of a file (default 65536)")
	pf.StringSlice("extensions", nil, "Audio extensions to index (default: all recognized)")
	pf.Int("workers", 0, "Concurrent fingerprint workers (default: number of CPUs)")
	pf.Bool("follow-symlinks", false, "Follow symbolic links while scanning")
	pf.String("db", "", "Record session reports in this DuckDB file")

	bindFlag(pf.Lookup("sample-size"), "dedup.sample_size")
	bindFlag(pf.Lookup("extensions"), "dedup.extensions")
	bindFlag(pf.Lookup("workers"), "scan.workers")
	bindFlag(pf.Lookup("follow-symlinks"), "scan.follow_symlinks")
	bindFlag(pf.Lookup("db"), "report.db")

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newFindCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// initConfig loads ~/.vibe-dedup.yaml (or cfgFile) and VIBE_DEDUP_* environment variables.
func initConfig(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".vibe-dedup")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("VIBE_DEDUP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}
