// Package fetch downloads candidate files and commits only those the
// duplicate gate accepts.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/vibe-dedup/internal/fingerprint"
	"github.com/inodb/vibe-dedup/internal/gate"
)

// DefaultTimeout bounds a single download.
const DefaultTimeout = 30 * time.Second

// Status is the outcome of fetching one URL.
type Status int

const (
	StatusAccepted  Status = iota + 1 // downloaded and kept
	StatusDuplicate                   // downloaded and discarded as a duplicate
	StatusExists                      // a file with the same name is already in the destination
	StatusFailed                      // transport error or excluded candidate
)

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusDuplicate:
		return "duplicate"
	case StatusExists:
		return "exists"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Result describes what happened to one URL.
type Result struct {
	URL      string
	Path     string
	Status   Status
	Bytes    int64
	Decision gate.Decision
	Err      error
}

// Fetcher downloads URLs into a destination directory through a gate.
type Fetcher struct {
	client  *http.Client
	gate    *gate.Gate
	destDir string
	logger  *zap.Logger

	mu      sync.Mutex
	claimed map[string]bool
}

// New creates a fetcher that writes accepted files to destDir.
func New(g *gate.Gate, destDir string) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: DefaultTimeout},
		gate:    g,
		destDir: destDir,
		logger:  zap.NewNop(),
		claimed: make(map[string]bool),
	}
}

// SetClient replaces the HTTP client.
func (f *Fetcher) SetClient(c *http.Client) {
	f.client = c
}

// SetLogger sets the logger for progress and warning messages.
func (f *Fetcher) SetLogger(l *zap.Logger) {
	f.logger = l
}

var unsafeChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// FileName derives a safe local file name from the last path segment of rawURL.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "", fmt.Errorf("url %q has no file name", rawURL)
	}
	name := strings.TrimSpace(unsafeChars.Replace(base))
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("url %q has no usable file name", rawURL)
	}
	return name, nil
}

// claim reserves a destination name for this session so two concurrent
// downloads cannot commit to the same path.
func (f *Fetcher) claim(dest string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimed[dest] {
		return false
	}
	if _, err := os.Lstat(dest); err == nil {
		return false
	}
	f.claimed[dest] = true
	return true
}

func (f *Fetcher) release(dest string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.claimed, dest)
}

// Fetch downloads rawURL to a temporary file, evaluates it through the gate,
// and either renames it into place (accept) or removes it (reject). The
// returned error is also recorded in Result.Err.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	res := Result{URL: rawURL}
	fail := func(err error) (Result, error) {
		res.Status = StatusFailed
		res.Err = err
		f.logger.Warn("fetch failed", zap.String("url", rawURL), zap.Error(err))
		return res, err
	}

	name, err := FileName(rawURL)
	if err != nil {
		return fail(err)
	}
	dest := filepath.Join(f.destDir, name)
	res.Path = dest

	if !f.claim(dest) {
		res.Status = StatusExists
		f.logger.Info("file already exists", zap.String("path", dest))
		return res, nil
	}

	tmp, n, err := f.download(ctx, rawURL, name)
	if err != nil {
		f.release(dest)
		return fail(err)
	}
	res.Bytes = n

	commit := func() error {
		if err := os.Rename(tmp, dest); err != nil {
			return fmt.Errorf("rename file: %w", err)
		}
		return nil
	}
	decision, err := f.gate.EvaluateCommit(ctx, gate.FileCandidate(tmp, dest), commit)
	res.Decision = decision
	if err != nil {
		os.Remove(tmp)
		f.release(dest)
		return fail(err)
	}

	if decision.Verdict == gate.Reject {
		os.Remove(tmp)
		f.release(dest)
		res.Status = StatusDuplicate
		f.logger.Info("duplicate found",
			zap.String("url", rawURL),
			zap.String("matches", decision.Existing))
		return res, nil
	}

	res.Status = StatusAccepted
	f.logger.Info("downloaded",
		zap.String("url", rawURL),
		zap.String("path", dest),
		zap.Int64("bytes", n))
	return res, nil
}

// download writes the response body to a temporary file next to the
// destination and verifies it against the declared Content-Length.
func (f *Fetcher) download(ctx context.Context, rawURL, name string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	out, err := os.CreateTemp(f.destDir, name+".*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}
	tmp := out.Name()

	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", n, ctxErr
		}
		return "", n, &fingerprint.SourceError{Path: rawURL, Kind: fingerprint.ErrUnreadableSource, Err: err}
	}

	switch {
	case n == 0:
		err = errors.New("empty body")
	case resp.ContentLength >= 0 && n != resp.ContentLength:
		err = fmt.Errorf("received %d bytes, Content-Length %d", n, resp.ContentLength)
	}
	if err != nil {
		os.Remove(tmp)
		return "", n, &fingerprint.SourceError{Path: rawURL, Kind: fingerprint.ErrCorruptSource, Err: err}
	}

	return tmp, n, nil
}

// Run fetches urls with at most concurrency downloads in flight and returns
// one Result per URL in input order. Per-URL failures are recorded in the
// results; Run itself stops early only when ctx is cancelled.
func (f *Fetcher) Run(ctx context.Context, urls []string, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]Result, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			f.logger.Debug("processing",
				zap.Int("n", i+1),
				zap.Int("of", len(urls)),
				zap.String("url", u))
			results[i], _ = f.Fetch(gctx, u)
			return nil
		})
	}
	g.Wait()

	return results
}
