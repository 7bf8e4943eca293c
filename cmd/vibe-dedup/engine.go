package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-dedup/internal/duckdb"
	"github.com/inodb/vibe-dedup/internal/fingerprint"
	"github.com/inodb/vibe-dedup/internal/index"
	"github.com/inodb/vibe-dedup/internal/scan"
)

// engine bundles the configured fingerprinter and index builder for one session.
type engine struct {
	session string
	fp      *fingerprint.Fingerprinter
	builder *index.Builder
}

func newEngine() (*engine, error) {
	exts, err := scan.ParseExtensions(viper.GetStringSlice("dedup.extensions"))
	if err != nil {
		return nil, usageError{fmt.Errorf("dedup.extensions: %w", err)}
	}

	walker := scan.NewWalker(exts)
	walker.SetFollowSymlinks(viper.GetBool("scan.follow_symlinks"))
	walker.SetLogger(logger)

	fp := fingerprint.New(viper.GetInt64("dedup.sample_size"))

	builder := index.NewBuilder(walker, fp)
	builder.SetWorkers(viper.GetInt("scan.workers"))
	builder.SetLogger(logger)

	return &engine{
		session: uuid.NewString(),
		fp:      fp,
		builder: builder,
	}, nil
}

// openReportStore opens the configured DuckDB report store, or returns nil
// when none is configured.
func openReportStore() (*duckdb.Store, error) {
	path := viper.GetString("report.db")
	if path == "" {
		return nil, nil
	}
	store, err := duckdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}
	return store, nil
}
