package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-dedup/internal/index"
)

// DecisionRecord is one gate outcome for a candidate. Verdict is "accept",
// "reject" or "excluded"; Err is set only for excluded candidates.
type DecisionRecord struct {
	Session     string
	DecidedAt   time.Time
	Source      string
	Tag         string
	Verdict     string
	Existing    string
	Size        int64
	Fingerprint string
	Err         string
}

// withAppender runs fn with an Appender on table and flushes it.
func (s *Store) withAppender(table string, fn func(*goduckdb.Appender) error) error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	if err := fn(appender); err != nil {
		return err
	}
	return appender.Flush()
}

// WriteDecisions batch-inserts gate decisions using the Appender API. Each
// row gets the next sequence number of its session, so reads return
// decisions in the order they were written.
func (s *Store) WriteDecisions(records []DecisionRecord) error {
	if len(records) == 0 {
		return nil
	}

	next := make(map[string]int64)
	for _, r := range records {
		if _, ok := next[r.Session]; ok {
			continue
		}
		seq, err := s.nextDecisionSeq(r.Session)
		if err != nil {
			return err
		}
		next[r.Session] = seq
	}

	return s.withAppender("decisions", func(a *goduckdb.Appender) error {
		for _, r := range records {
			seq := next[r.Session]
			next[r.Session]++
			if err := a.AppendRow(
				r.Session, seq, r.DecidedAt, r.Source, r.Tag, r.Verdict,
				r.Existing, r.Size, r.Fingerprint, r.Err,
			); err != nil {
				return fmt.Errorf("append decision: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) nextDecisionSeq(session string) (int64, error) {
	var seq int64
	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM decisions WHERE session=?`, session,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query decision sequence: %w", err)
	}
	return seq, nil
}

// WriteDuplicateGroups stores the duplicate groups found in a session, one
// row per source; position 0 is the copy that was seen first.
func (s *Store) WriteDuplicateGroups(session string, groups []index.DuplicateGroup) error {
	if len(groups) == 0 {
		return nil
	}
	return s.withAppender("duplicate_groups", func(a *goduckdb.Appender) error {
		for gi, g := range groups {
			fp := g.Fingerprint.String()
			size := int64(g.Fingerprint.Size)
			for pi, path := range g.Sources {
				if err := a.AppendRow(session, int32(gi), int32(pi), path, size, fp); err != nil {
					return fmt.Errorf("append duplicate group: %w", err)
				}
			}
		}
		return nil
	})
}

// Decisions returns the decisions recorded for a session in the order they
// were written.
func (s *Store) Decisions(session string) ([]DecisionRecord, error) {
	rows, err := s.db.Query(`SELECT
		session, decided_at, source, tag, verdict, existing, size, fingerprint, error
		FROM decisions
		WHERE session=?
		ORDER BY seq`, session)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var r DecisionRecord
		if err := rows.Scan(
			&r.Session, &r.DecidedAt, &r.Source, &r.Tag, &r.Verdict,
			&r.Existing, &r.Size, &r.Fingerprint, &r.Err,
		); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return out, nil
}

// VerdictCounts returns the number of decisions per verdict for a session.
func (s *Store) VerdictCounts(session string) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT verdict, COUNT(*) FROM decisions WHERE session=? GROUP BY verdict`, session)
	if err != nil {
		return nil, fmt.Errorf("count verdicts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var verdict string
		var n int64
		if err := rows.Scan(&verdict, &n); err != nil {
			return nil, fmt.Errorf("scan verdict count: %w", err)
		}
		counts[verdict] = int(n)
	}
	return counts, rows.Err()
}

// DuplicateGroupCount returns the number of duplicate groups recorded for a session.
func (s *Store) DuplicateGroupCount(session string) (int, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(DISTINCT group_id) FROM duplicate_groups WHERE session=?`, session).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count duplicate groups: %w", err)
	}
	return int(n), nil
}

// DuplicatePaths returns the paths of one duplicate group in position order.
func (s *Store) DuplicatePaths(session string, groupID int) ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM duplicate_groups
		WHERE session=? AND group_id=?
		ORDER BY position`, session, groupID)
	if err != nil {
		return nil, fmt.Errorf("query duplicate paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan duplicate path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
