package output

import (
	"encoding/csv"
	"io"

	"github.com/inodb/vibe-dedup/internal/index"
)

// CSVWriter writes duplicate pairs as RFC 4180 CSV.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter creates a new CSV writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the header record.
func (cw *CSVWriter) WriteHeader() error {
	return cw.w.Write(pairColumns)
}

// Write writes every pair of a duplicate group.
func (cw *CSVWriter) Write(g index.DuplicateGroup) error {
	return cw.w.WriteAll(pairRows(g))
}

// Flush flushes any buffered data to the underlying writer.
func (cw *CSVWriter) Flush() error {
	cw.w.Flush()
	return cw.w.Error()
}
