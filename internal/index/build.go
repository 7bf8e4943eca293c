package index

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/inodb/vibe-dedup/internal/fingerprint"
	"github.com/inodb/vibe-dedup/internal/scan"
)

// Skipped is a recognized file that could not be fingerprinted.
type Skipped struct {
	Path string
	Err  error
}

// BuildReport summarizes an index build.
type BuildReport struct {
	Roots      []string
	Indexed    int   // files fingerprinted into the index
	Bytes      int64 // total size of indexed files
	Skipped    []Skipped
	WalkErrors []scan.WalkError
	Cancelled  bool
}

// SkippedPaths returns every path left out of the index, walk errors first.
func (r *BuildReport) SkippedPaths() []string {
	paths := make([]string, 0, len(r.WalkErrors)+len(r.Skipped))
	for _, we := range r.WalkErrors {
		paths = append(paths, we.Path)
	}
	for _, s := range r.Skipped {
		paths = append(paths, s.Path)
	}
	return paths
}

// Builder builds an Index by enumerating and fingerprinting files.
type Builder struct {
	enum    scan.Enumerator
	fp      *fingerprint.Fingerprinter
	workers int
	logger  *zap.Logger
}

// NewBuilder creates a builder using enum to discover files and fp to
// fingerprint them.
func NewBuilder(enum scan.Enumerator, fp *fingerprint.Fingerprinter) *Builder {
	return &Builder{
		enum:   enum,
		fp:     fp,
		logger: zap.NewNop(),
	}
}

// SetWorkers sets the number of concurrent fingerprint workers (0 = NumCPU).
func (b *Builder) SetWorkers(n int) {
	b.workers = n
}

// SetLogger sets the logger for warning and info messages.
func (b *Builder) SetLogger(l *zap.Logger) {
	b.logger = l
}

// Build enumerates roots and fingerprints every recognized file into a new
// Index. Files are inserted in enumeration order, so for content present
// more than once the first enumerated path is the first source.
//
// Per-file and per-directory failures are collected in the report and never
// fail the build. The only error returned is the context's; the index built
// up to that point is still returned and usable.
func (b *Builder) Build(ctx context.Context, roots []string) (*Index, *BuildReport, error) {
	idx := New()
	report := &BuildReport{Roots: roots}

	items := make(chan WorkItem, 64)
	var walkErr error

	go func() {
		defer close(items)
		seq := 0
		report.WalkErrors, walkErr = b.enum.Walk(ctx, roots, func(e scan.Entry) error {
			select {
			case items <- WorkItem{Seq: seq, Entry: e}:
				seq++
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	results := ParallelFingerprint(ctx, b.fp, items, b.workers)

	err := OrderedCollect(results, func(r WorkResult) error {
		if r.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(r.Err, ctxErr) {
				return ctxErr
			}
			b.logger.Warn("skipping file",
				zap.String("path", r.Entry.Path),
				zap.Error(r.Err))
			report.Skipped = append(report.Skipped, Skipped{Path: r.Entry.Path, Err: r.Err})
			return nil
		}
		idx.add(r.Fingerprint, r.Entry.Path)
		report.Indexed++
		report.Bytes += int64(r.Fingerprint.Size)
		return nil
	})
	if err == nil {
		err = walkErr
	}
	if err != nil {
		report.Cancelled = true
		b.logger.Info("index build cancelled",
			zap.Int("indexed", report.Indexed),
			zap.Error(err))
		return idx, report, err
	}

	b.logger.Info("index built",
		zap.Strings("roots", roots),
		zap.Int("files", report.Indexed),
		zap.Int("fingerprints", idx.Len()),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("walk_errors", len(report.WalkErrors)))

	return idx, report, nil
}
