package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-dedup/internal/duckdb"
	"github.com/inodb/vibe-dedup/internal/fetch"
	"github.com/inodb/vibe-dedup/internal/gate"
	"github.com/inodb/vibe-dedup/internal/index"
	"github.com/inodb/vibe-dedup/internal/output"
)

func newFetchCmd() *cobra.Command {
	var (
		destDir      string
		checkAgainst []string
		urlFile      string
		includeDest  bool
	)

	cmd := &cobra.Command{
		Use:   "fetch --dest <dir> [url]...",
		Short: "Download audio files, skipping content you already have",
		Long: `Download each URL into the destination directory. Before a download is
kept, its content fingerprint is checked against every audio file under the
--check-against directories and against everything already kept in this run;
duplicates are discarded.`,
		Example: `  vibe-dedup fetch --dest ~/Downloads/new --check-against ~/Music http://example.com/a.mp3
  vibe-dedup fetch --dest ./incoming --url-file urls.txt --concurrency 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if destDir == "" {
				return usageError{fmt.Errorf("--dest is required")}
			}
			urls := args
			if urlFile != "" {
				fromFile, err := readURLFile(urlFile)
				if err != nil {
					return err
				}
				urls = append(urls, fromFile...)
			}

			if err := os.MkdirAll(destDir, 0755); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", destDir, err)
			}

			eng, err := newEngine()
			if err != nil {
				return err
			}

			roots := checkAgainst
			if includeDest {
				roots = append(roots, destDir)
			}

			idx := index.New()
			var report *index.BuildReport
			if len(roots) > 0 {
				idx, report, err = eng.builder.Build(cmd.Context(), roots)
				if err != nil {
					return fmt.Errorf("scanning existing files: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Found %d existing audio files to check against\n", report.Indexed)
			}

			g := gate.New(idx, eng.fp)
			g.SetLogger(logger)

			f := fetch.New(g, destDir)
			f.SetClient(&http.Client{Timeout: viper.GetDuration("fetch.timeout")})
			f.SetLogger(logger)

			results := f.Run(cmd.Context(), urls, viper.GetInt("fetch.concurrency"))

			out := cmd.OutOrStdout()
			for _, r := range results {
				printResult(out, r)
			}
			tally := g.Tally()
			fmt.Fprint(out, output.Summary(&tally, report))
			fmt.Fprint(out, statusLine(results))

			if err := recordDecisions(eng.session, results); err != nil {
				return err
			}
			return cmd.Context().Err()
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&destDir, "dest", "", "Directory accepted downloads are written to")
	fl.StringSliceVar(&checkAgainst, "check-against", nil, "Existing library directories to check for duplicates (repeatable)")
	fl.StringVar(&urlFile, "url-file", "", "File with one URL per line ('#' starts a comment)")
	fl.BoolVar(&includeDest, "include-dest", false, "Also check against files already in --dest")
	fl.Int("concurrency", 4, "Concurrent downloads")
	fl.Duration("timeout", fetch.DefaultTimeout, "Timeout for a single download")

	bindFlag(fl.Lookup("concurrency"), "fetch.concurrency")
	bindFlag(fl.Lookup("timeout"), "fetch.timeout")

	return cmd
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url file: %w", err)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read url file: %w", err)
	}
	return urls, nil
}

func printResult(out io.Writer, r fetch.Result) {
	switch r.Status {
	case fetch.StatusAccepted:
		fmt.Fprintf(out, "Downloaded: %s (%d bytes)\n", r.Path, r.Bytes)
	case fetch.StatusDuplicate:
		fmt.Fprintf(out, "Duplicate: %s matches %s\n", r.URL, r.Decision.Existing)
	case fetch.StatusExists:
		fmt.Fprintf(out, "Already exists: %s\n", r.Path)
	case fetch.StatusFailed:
		fmt.Fprintf(out, "Failed: %s: %v\n", r.URL, r.Err)
	}
}

func statusLine(results []fetch.Result) string {
	counts := make(map[fetch.Status]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return fmt.Sprintf("Fetched %d URLs: %d downloaded, %d duplicates skipped, %d already present, %d failed\n",
		len(results), counts[fetch.StatusAccepted], counts[fetch.StatusDuplicate],
		counts[fetch.StatusExists], counts[fetch.StatusFailed])
}

func recordDecisions(session string, results []fetch.Result) error {
	store, err := openReportStore()
	if err != nil || store == nil {
		return err
	}
	defer store.Close()

	now := time.Now().UTC()
	records := make([]duckdb.DecisionRecord, 0, len(results))
	for _, r := range results {
		rec := duckdb.DecisionRecord{
			Session:   session,
			DecidedAt: now,
			Source:    r.URL,
			Size:      r.Bytes,
		}
		switch r.Status {
		case fetch.StatusAccepted, fetch.StatusDuplicate:
			rec.Verdict = r.Decision.Verdict.String()
			rec.Tag = r.Decision.Tag
			rec.Existing = r.Decision.Existing
			rec.Fingerprint = r.Decision.Fingerprint.String()
		case fetch.StatusExists:
			rec.Verdict = "exists"
			rec.Tag = r.Path
		default:
			rec.Verdict = "excluded"
			if r.Err != nil {
				rec.Err = r.Err.Error()
			}
		}
		records = append(records, rec)
	}

	if err := store.WriteDecisions(records); err != nil {
		return fmt.Errorf("recording decisions: %w", err)
	}
	return nil
}
