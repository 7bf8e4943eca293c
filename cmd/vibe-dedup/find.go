package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-dedup/internal/output"
)

func newFindCmd() *cobra.Command {
	var (
		format     string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "find <dir>...",
		Short: "List files with identical content across directories",
		Long: `Fingerprint every recognized audio file under the given directories
and write each pair of files sharing a fingerprint. The first column is the
copy seen first; the second is its duplicate.`,
		Example: `  vibe-dedup find ~/Music ~/Downloads
  vibe-dedup find -f csv -o duplicates.csv ~/Music`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}

			var writer output.PairWriter
			switch format {
			case "tab":
				writer = output.NewTabWriter(out)
			case "csv":
				writer = output.NewCSVWriter(out)
			default:
				return usageError{fmt.Errorf("unknown output format %q", format)}
			}

			idx, report, buildErr := eng.builder.Build(cmd.Context(), args)
			groups := idx.DuplicateGroups()

			if err := writer.WriteHeader(); err != nil {
				return fmt.Errorf("writing header: %w", err)
			}
			for _, g := range groups {
				if err := writer.Write(g); err != nil {
					return fmt.Errorf("writing duplicates: %w", err)
				}
			}
			if err := writer.Flush(); err != nil {
				return fmt.Errorf("flushing output: %w", err)
			}

			errOut := cmd.ErrOrStderr()
			fmt.Fprint(errOut, output.Summary(nil, report))
			fmt.Fprintf(errOut, "Processed %d audio files, found %d duplicate groups\n", report.Indexed, len(groups))

			store, err := openReportStore()
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
				if err := store.WriteDuplicateGroups(eng.session, groups); err != nil {
					return fmt.Errorf("recording duplicate groups: %w", err)
				}
				fmt.Fprintf(errOut, "Recorded session %s\n", eng.session)
			}

			return buildErr
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "tab", "Output format: tab, csv")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}
