package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-dedup/internal/fetch"
	"github.com/inodb/vibe-dedup/internal/fingerprint"
	"github.com/inodb/vibe-dedup/internal/scan"
)

func setDefaults() {
	exts := scan.DefaultExtensions().Sorted()
	names := make([]string, len(exts))
	for i, ext := range exts {
		names[i] = string(ext)
	}

	viper.SetDefault("dedup.sample_size", fingerprint.DefaultSampleSize)
	viper.SetDefault("dedup.extensions", names)
	viper.SetDefault("scan.workers", 0)
	viper.SetDefault("scan.follow_symlinks", false)
	viper.SetDefault("fetch.concurrency", 4)
	viper.SetDefault("fetch.timeout", fetch.DefaultTimeout.String())
	viper.SetDefault("report.db", "")
}

func bindFlag(f *pflag.Flag, key string) {
	if err := viper.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", f.Name, err))
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibe-dedup configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.vibe-dedup.yaml.",
		Example: `  vibe-dedup config                              # show all config
  vibe-dedup config set dedup.sample_size 131072  # sample 128 KiB at each end
  vibe-dedup config get fetch.concurrency         # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if f := viper.ConfigFileUsed(); f != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "# Config file: %s\n", f)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

// configParsers maps every settable key to the parser for its value.
var configParsers = map[string]func(string) (any, error){
	"dedup.sample_size": func(v string) (any, error) {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("want a non-negative byte count, got %q", v)
		}
		return n, nil
	},
	"dedup.extensions": func(v string) (any, error) {
		names := strings.Split(v, ",")
		if _, err := scan.ParseExtensions(names); err != nil {
			return nil, err
		}
		return names, nil
	},
	"scan.workers":         parseCount,
	"scan.follow_symlinks": parseBool,
	"fetch.concurrency":    parseCount,
	"fetch.timeout": func(v string) (any, error) {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("want a positive duration such as 30s, got %q", v)
		}
		return d.String(), nil
	},
	"report.db": func(v string) (any, error) { return v, nil },
}

func parseCount(v string) (any, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("want a non-negative integer, got %q", v)
	}
	return n, nil
}

func parseBool(v string) (any, error) {
	switch strings.ToLower(v) {
	case "true", "yes", "on":
		return true, nil
	case "false", "no", "off":
		return false, nil
	}
	return nil, fmt.Errorf("want true or false, got %q", v)
}

func knownKeys() string {
	keys := make([]string, 0, len(configParsers))
	for k := range configParsers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	parse, ok := configParsers[key]
	if !ok {
		return usageError{fmt.Errorf("unknown config key %q (known: %s)", key, knownKeys())}
	}
	parsed, err := parse(value)
	if err != nil {
		return usageError{fmt.Errorf("%s: %w", key, err)}
	}
	viper.Set(key, parsed)

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".vibe-dedup.yaml")
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v in %s\n", key, parsed, cfgFile)
	return nil
}

func runConfigGet(cmd *cobra.Command, key string) error {
	if _, ok := configParsers[key]; !ok {
		return usageError{fmt.Errorf("unknown config key %q (known: %s)", key, knownKeys())}
	}
	fmt.Fprintln(cmd.OutOrStdout(), viper.Get(key))
	return nil
}
