// Package gate decides whether candidate content is kept or discarded as a
// duplicate of content already in a session's index.
package gate

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/inodb/vibe-dedup/internal/fingerprint"
	"github.com/inodb/vibe-dedup/internal/index"
)

// Verdict is the outcome of evaluating a candidate.
type Verdict int

const (
	Accept Verdict = iota + 1
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	}
	return "unknown"
}

// Decision is the gate's answer for one candidate.
type Decision struct {
	Verdict     Verdict
	Fingerprint fingerprint.Fingerprint
	// Tag is the source registered for an accepted candidate.
	Tag string
	// Existing is the first known source of a rejected candidate's content.
	Existing string
}

// Tally counts gate outcomes.
type Tally struct {
	Accepted            int
	RejectedAsDuplicate int
	// Excluded counts candidates that could not be fingerprinted and so
	// received neither verdict.
	Excluded int
}

// Gate evaluates candidates against an index and registers the accepted ones.
// It is safe for concurrent use; at most one of several candidates with the
// same content is ever accepted.
type Gate struct {
	idx    *index.Index
	fp     *fingerprint.Fingerprinter
	logger *zap.Logger

	accepted atomic.Int64
	rejected atomic.Int64
	excluded atomic.Int64
}

// New creates a gate over idx. A nil idx starts an empty session.
func New(idx *index.Index, fp *fingerprint.Fingerprinter) *Gate {
	if idx == nil {
		idx = index.New()
	}
	return &Gate{
		idx:    idx,
		fp:     fp,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for warning and info messages.
func (g *Gate) SetLogger(l *zap.Logger) {
	g.logger = l
}

// Index returns the index the gate consults and mutates.
func (g *Gate) Index() *index.Index {
	return g.idx
}

// Evaluate fingerprints c and decides its verdict. An accepted candidate is
// registered under its destination, or under a session tag when it has none,
// so later candidates with the same content are rejected.
//
// If the fingerprint cannot be computed the candidate is excluded: the error
// is returned and no verdict is given.
func (g *Gate) Evaluate(ctx context.Context, c Candidate) (Decision, error) {
	return g.EvaluateCommit(ctx, c, nil)
}

// EvaluateCommit is Evaluate for candidates that must be persisted before
// they count as kept. When the verdict would be Accept, commit runs while
// the decision is held, and the candidate is registered and counted only if
// commit succeeds. A commit error is returned with a zero Decision and
// leaves the index and tally unchanged, so a later candidate with the same
// content can still be accepted.
func (g *Gate) EvaluateCommit(ctx context.Context, c Candidate, commit func() error) (Decision, error) {
	sum, err := c.Fingerprint(ctx, g.fp)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			g.excluded.Add(1)
			g.logger.Warn("candidate excluded",
				zap.String("dest", c.Dest()),
				zap.Error(err))
		}
		return Decision{}, err
	}

	tag := c.Dest()
	if tag == "" {
		tag = index.SessionTag(sum.String())
	}

	existing, registered, err := g.idx.CheckAndCommit(sum, tag, commit)
	if err != nil {
		g.logger.Warn("commit failed",
			zap.String("dest", c.Dest()),
			zap.Stringer("fingerprint", sum),
			zap.Error(err))
		return Decision{}, err
	}
	if !registered {
		g.rejected.Add(1)
		g.logger.Info("duplicate rejected",
			zap.String("dest", c.Dest()),
			zap.String("matches", existing),
			zap.Stringer("fingerprint", sum))
		return Decision{Verdict: Reject, Fingerprint: sum, Existing: existing}, nil
	}

	g.accepted.Add(1)
	g.logger.Debug("candidate accepted",
		zap.String("tag", tag),
		zap.Stringer("fingerprint", sum))
	return Decision{Verdict: Accept, Fingerprint: sum, Tag: tag}, nil
}

// Tally returns the running counts. It may be called at any time.
func (g *Gate) Tally() Tally {
	return Tally{
		Accepted:            int(g.accepted.Load()),
		RejectedAsDuplicate: int(g.rejected.Load()),
		Excluded:            int(g.excluded.Load()),
	}
}
