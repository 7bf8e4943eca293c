// Package output provides report formatters for duplicate detection results.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-dedup/internal/index"
)

// PairWriter writes duplicate groups as (kept, duplicate) pairs.
type PairWriter interface {
	WriteHeader() error
	Write(g index.DuplicateGroup) error
	Flush() error
}

var pairColumns = []string{
	"Duplicate File 1",
	"Duplicate File 2",
	"Size",
	"Fingerprint",
}

// pairRows expands a group into one row per duplicate of its first source.
func pairRows(g index.DuplicateGroup) [][]string {
	if len(g.Sources) < 2 {
		return nil
	}
	size := strconv.FormatUint(g.Fingerprint.Size, 10)
	fp := g.Fingerprint.String()
	rows := make([][]string, 0, len(g.Sources)-1)
	for _, dup := range g.Sources[1:] {
		rows = append(rows, []string{g.Sources[0], dup, size, fp})
	}
	return rows
}

// TabWriter writes duplicate pairs in tab-delimited format.
type TabWriter struct {
	w *bufio.Writer
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString("#" + strings.Join(pairColumns, "\t") + "\n")
	return err
}

// Write writes every pair of a duplicate group.
func (tw *TabWriter) Write(g index.DuplicateGroup) error {
	for _, row := range pairRows(g) {
		if _, err := tw.w.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}
