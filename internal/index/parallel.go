package index

import (
	"context"
	"runtime"
	"sync"

	"github.com/inodb/vibe-dedup/internal/fingerprint"
	"github.com/inodb/vibe-dedup/internal/scan"
)

// WorkItem holds an enumerated file waiting to be fingerprinted.
type WorkItem struct {
	Seq   int
	Entry scan.Entry
}

// WorkResult holds the fingerprint (or failure) for a single file.
type WorkResult struct {
	Seq         int
	Entry       scan.Entry
	Fingerprint fingerprint.Fingerprint
	Err         error
}

// ParallelFingerprint fingerprints work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func ParallelFingerprint(ctx context.Context, fp *fingerprint.Fingerprinter, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				sum, err := fp.File(ctx, item.Entry.Path)
				results <- WorkResult{
					Seq:         item.Seq,
					Entry:       item.Entry,
					Fingerprint: sum,
					Err:         err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
