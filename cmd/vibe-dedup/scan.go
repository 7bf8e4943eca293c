package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-dedup/internal/output"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <dir>...",
		Short: "Build a fingerprint index and report what it covers",
		Long: `Recursively fingerprint every recognized audio file under the given
directories and print a summary, including any paths that had to be skipped.`,
		Example: `  vibe-dedup scan ~/Music
  vibe-dedup scan --extensions mp3,flac /mnt/a /mnt/b`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}

			idx, report, err := eng.builder.Build(cmd.Context(), args)
			out := cmd.OutOrStdout()
			fmt.Fprint(out, output.Summary(nil, report))
			fmt.Fprintf(out, "%d distinct fingerprints, %d duplicate groups\n",
				idx.Len(), len(idx.DuplicateGroups()))
			return err
		},
	}
}
