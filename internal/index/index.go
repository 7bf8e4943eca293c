// Package index holds the session-scoped set of known content fingerprints.
package index

import (
	"sort"
	"sync"

	"github.com/inodb/vibe-dedup/internal/fingerprint"
)

// sessionPrefix marks sources accepted during the current run rather than
// found on disk at build time.
const sessionPrefix = "session:"

// SessionTag returns the synthetic source tag for a candidate accepted
// during the current session that has no path of its own.
func SessionTag(name string) string {
	return sessionPrefix + name
}

// IsSessionTag reports whether tag was produced by SessionTag.
func IsSessionTag(tag string) bool {
	return len(tag) >= len(sessionPrefix) && tag[:len(sessionPrefix)] == sessionPrefix
}

// Index maps fingerprints to the sources that produced them. Entries are
// only ever added. All methods are safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	entries map[fingerprint.Fingerprint][]string
}

// New creates an empty index.
func New() *Index {
	return &Index{
		entries: make(map[fingerprint.Fingerprint][]string),
	}
}

// Contains reports whether fp is known.
func (x *Index) Contains(fp fingerprint.Fingerprint) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.entries[fp]
	return ok
}

// Lookup returns the first source registered for fp.
func (x *Index) Lookup(fp fingerprint.Fingerprint) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	sources, ok := x.entries[fp]
	if !ok {
		return "", false
	}
	return sources[0], true
}

// Sources returns every source recorded for fp, first registered first.
func (x *Index) Sources(fp fingerprint.Fingerprint) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]string(nil), x.entries[fp]...)
}

// Register inserts fp with the given source tag. If fp is already known the
// call is a no-op and returns false; the first writer wins.
func (x *Index) Register(fp fingerprint.Fingerprint, tag string) bool {
	_, ok := x.CheckAndRegister(fp, tag)
	return ok
}

// CheckAndRegister registers fp under tag unless it is already known, as
// one atomic step. It returns the existing first source and false when fp
// was already present, or "" and true when this call registered it.
func (x *Index) CheckAndRegister(fp fingerprint.Fingerprint, tag string) (existing string, registered bool) {
	existing, registered, _ = x.CheckAndCommit(fp, tag, nil)
	return existing, registered
}

// CheckAndCommit is CheckAndRegister with a commit step. When fp is not yet
// known, commit runs while the index is locked and fp is registered only if
// it succeeds. A failed commit leaves the index unchanged and its error is
// returned with registered false. A nil commit always succeeds.
func (x *Index) CheckAndCommit(fp fingerprint.Fingerprint, tag string, commit func() error) (existing string, registered bool, err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if sources, ok := x.entries[fp]; ok {
		return sources[0], false, nil
	}
	if commit != nil {
		if err := commit(); err != nil {
			return "", false, err
		}
	}
	x.entries[fp] = []string{tag}
	return "", true, nil
}

// add records another source for fp. Used while building from disk, where
// every copy of the same content is kept for duplicate reporting.
func (x *Index) add(fp fingerprint.Fingerprint, path string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[fp] = append(x.entries[fp], path)
}

// Len returns the number of distinct fingerprints.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// SourceCount returns the total number of sources across all fingerprints.
func (x *Index) SourceCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, sources := range x.entries {
		n += len(sources)
	}
	return n
}

// Fingerprints returns every known fingerprint in a stable order.
func (x *Index) Fingerprints() []fingerprint.Fingerprint {
	x.mu.RLock()
	out := make([]fingerprint.Fingerprint, 0, len(x.entries))
	for fp := range x.entries {
		out = append(out, fp)
	}
	x.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// DuplicateGroup is a set of sources that share one fingerprint.
type DuplicateGroup struct {
	Fingerprint fingerprint.Fingerprint
	Sources     []string
}

// DuplicateGroups returns every fingerprint with more than one source,
// ordered by the first source path.
func (x *Index) DuplicateGroups() []DuplicateGroup {
	x.mu.RLock()
	var groups []DuplicateGroup
	for fp, sources := range x.entries {
		if len(sources) > 1 {
			groups = append(groups, DuplicateGroup{
				Fingerprint: fp,
				Sources:     append([]string(nil), sources...),
			})
		}
	}
	x.mu.RUnlock()

	sort.Slice(groups, func(i, j int) bool { return groups[i].Sources[0] < groups[j].Sources[0] })
	return groups
}

func less(a, b fingerprint.Fingerprint) bool {
	if a.Size != b.Size {
		return a.Size < b.Size
	}
	if a.Digest.Hi != b.Digest.Hi {
		return a.Digest.Hi < b.Digest.Hi
	}
	return a.Digest.Lo < b.Digest.Lo
}
