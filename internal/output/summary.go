package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/inodb/vibe-dedup/internal/fingerprint"
	"github.com/inodb/vibe-dedup/internal/gate"
	"github.com/inodb/vibe-dedup/internal/index"
)

// Summary renders a human-readable report of a session: what the index
// build covered, the gate tally and every path left out along the way.
// t is nil when no gate ran, and report is nil when no index was built.
func Summary(t *gate.Tally, report *index.BuildReport) string {
	var b strings.Builder

	if report != nil {
		fmt.Fprintf(&b, "Indexed %s files (%s) from %d %s\n",
			humanize.Comma(int64(report.Indexed)),
			humanize.IBytes(uint64(report.Bytes)),
			len(report.Roots), plural(len(report.Roots), "root", "roots"))
		if report.Cancelled {
			b.WriteString("Index build was cancelled; results are partial\n")
		}
	}

	if t != nil {
		fmt.Fprintf(&b, "Accepted: %s, rejected as duplicate: %s",
			humanize.Comma(int64(t.Accepted)),
			humanize.Comma(int64(t.RejectedAsDuplicate)))
		if t.Excluded > 0 {
			fmt.Fprintf(&b, ", excluded: %s", humanize.Comma(int64(t.Excluded)))
		}
		b.WriteString("\n")
	}

	if report == nil {
		return b.String()
	}

	skipped := len(report.WalkErrors) + len(report.Skipped)
	if skipped == 0 {
		return b.String()
	}
	fmt.Fprintf(&b, "Skipped %d %s:\n", skipped, plural(skipped, "path", "paths"))
	for _, we := range report.WalkErrors {
		fmt.Fprintf(&b, "  %s (walk: %v)\n", we.Path, we.Err)
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(&b, "  %s (%s)\n", s.Path, reason(s.Err))
	}
	return b.String()
}

// reason drops the path a SourceError would repeat.
func reason(err error) string {
	var se *fingerprint.SourceError
	if errors.As(err, &se) && se.Err != nil {
		return fmt.Sprintf("%v: %v", se.Kind, se.Err)
	}
	return err.Error()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
