package gate

import (
	"context"
	"io"

	"github.com/inodb/vibe-dedup/internal/fingerprint"
)

// Candidate is content under evaluation that has not been committed.
type Candidate interface {
	// Fingerprint computes the candidate's fingerprint.
	Fingerprint(ctx context.Context, f *fingerprint.Fingerprinter) (fingerprint.Fingerprint, error)

	// Dest returns the path the candidate will occupy if accepted, or ""
	// when it has none.
	Dest() string
}

type fileCandidate struct {
	path, dest string
}

// FileCandidate is a complete file on disk. If dest is empty the file's own
// path is registered on accept.
func FileCandidate(path, dest string) Candidate {
	if dest == "" {
		dest = path
	}
	return &fileCandidate{path: path, dest: dest}
}

func (c *fileCandidate) Fingerprint(ctx context.Context, f *fingerprint.Fingerprinter) (fingerprint.Fingerprint, error) {
	return f.File(ctx, c.path)
}

func (c *fileCandidate) Dest() string { return c.dest }

type bufferCandidate struct {
	data     []byte
	declared int64
	dest     string
}

// BufferCandidate is a completed download held in memory together with the
// length its transport declared.
func BufferCandidate(data []byte, declaredLength int64, dest string) Candidate {
	return &bufferCandidate{data: data, declared: declaredLength, dest: dest}
}

func (c *bufferCandidate) Fingerprint(ctx context.Context, f *fingerprint.Fingerprinter) (fingerprint.Fingerprint, error) {
	return f.Bytes(ctx, c.data, c.declared)
}

func (c *bufferCandidate) Dest() string { return c.dest }

type streamCandidate struct {
	r        io.Reader
	declared int64
	dest     string
}

// StreamCandidate is a finished transfer read once from r. It can be
// evaluated only once.
func StreamCandidate(r io.Reader, declaredLength int64, dest string) Candidate {
	return &streamCandidate{r: r, declared: declaredLength, dest: dest}
}

func (c *streamCandidate) Fingerprint(ctx context.Context, f *fingerprint.Fingerprinter) (fingerprint.Fingerprint, error) {
	return f.Stream(ctx, c.r, c.declared)
}

func (c *streamCandidate) Dest() string { return c.dest }
