package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-dedup/internal/fingerprint"
	"github.com/inodb/vibe-dedup/internal/scan"
)

func makeItems(t *testing.T, n int) <-chan WorkItem {
	t.Helper()
	dir := t.TempDir()
	ch := make(chan WorkItem, n)
	for i := range n {
		p := filepath.Join(dir, fmt.Sprintf("%03d.mp3", i))
		require.NoError(t, os.WriteFile(p, []byte(fmt.Sprintf("content %d", i)), 0o644))
		ch <- WorkItem{Seq: i, Entry: scan.Entry{Path: p, Ext: scan.MP3}}
	}
	close(ch)
	return ch
}

func TestParallelFingerprint_OrderPreservation(t *testing.T) {
	items := makeItems(t, 200)
	results := ParallelFingerprint(context.Background(), fingerprint.New(0), items, 8)

	var collected []int
	err := OrderedCollect(results, func(r WorkResult) error {
		require.NoError(t, r.Err)
		collected = append(collected, r.Seq)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, collected, 200)
	for i, seq := range collected {
		assert.Equal(t, i, seq, "result %d out of order", i)
	}
}

func TestParallelFingerprint_SingleWorker(t *testing.T) {
	items := makeItems(t, 50)
	results := ParallelFingerprint(context.Background(), fingerprint.New(0), items, 1)

	var collected []int
	err := OrderedCollect(results, func(r WorkResult) error {
		collected = append(collected, r.Seq)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, collected, 50)
	for i, seq := range collected {
		assert.Equal(t, i, seq)
	}
}

func TestParallelFingerprint_ErrorsCarried(t *testing.T) {
	ch := make(chan WorkItem, 1)
	ch <- WorkItem{Seq: 0, Entry: scan.Entry{Path: filepath.Join(t.TempDir(), "missing.mp3")}}
	close(ch)

	results := ParallelFingerprint(context.Background(), fingerprint.New(0), ch, 2)
	var errs []error
	require.NoError(t, OrderedCollect(results, func(r WorkResult) error {
		errs = append(errs, r.Err)
		return nil
	}))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], fingerprint.ErrUnreadableSource)
}

func TestOrderedCollect_EarlyError(t *testing.T) {
	items := makeItems(t, 100)
	results := ParallelFingerprint(context.Background(), fingerprint.New(0), items, 4)

	stop := errors.New("stop")
	count := 0
	err := OrderedCollect(results, func(r WorkResult) error {
		count++
		if count == 10 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 10, count)
}
