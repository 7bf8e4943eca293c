package index

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-dedup/internal/fingerprint"
)

func fpOf(t *testing.T, s string) fingerprint.Fingerprint {
	t.Helper()
	fp, err := fingerprint.New(0).Bytes(context.Background(), []byte(s), int64(len(s)))
	require.NoError(t, err)
	return fp
}

func TestIndex_RegisterAndContains(t *testing.T) {
	x := New()
	a := fpOf(t, "alpha")
	b := fpOf(t, "beta")

	assert.False(t, x.Contains(a))
	assert.True(t, x.Register(a, "/music/a.mp3"))
	assert.True(t, x.Contains(a))
	assert.False(t, x.Contains(b))
	assert.Equal(t, 1, x.Len())
}

func TestIndex_RegisterFirstWriterWins(t *testing.T) {
	x := New()
	a := fpOf(t, "alpha")

	assert.True(t, x.Register(a, "/first.mp3"))
	assert.False(t, x.Register(a, "/second.mp3"))

	src, ok := x.Lookup(a)
	require.True(t, ok)
	assert.Equal(t, "/first.mp3", src)
	assert.Equal(t, []string{"/first.mp3"}, x.Sources(a))
}

func TestIndex_CheckAndRegister(t *testing.T) {
	x := New()
	a := fpOf(t, "alpha")

	existing, ok := x.CheckAndRegister(a, "/one.mp3")
	assert.True(t, ok)
	assert.Empty(t, existing)

	existing, ok = x.CheckAndRegister(a, "/two.mp3")
	assert.False(t, ok)
	assert.Equal(t, "/one.mp3", existing)
}

func TestIndex_CheckAndCommit(t *testing.T) {
	x := New()
	a := fpOf(t, "alpha")
	errDisk := errors.New("disk full")

	_, ok, err := x.CheckAndCommit(a, "/lost.mp3", func() error { return errDisk })
	assert.ErrorIs(t, err, errDisk)
	assert.False(t, ok)
	assert.False(t, x.Contains(a))

	calls := 0
	commit := func() error { calls++; return nil }
	_, ok, err = x.CheckAndCommit(a, "/kept.mp3", commit)
	require.NoError(t, err)
	assert.True(t, ok)

	existing, ok, err := x.CheckAndCommit(a, "/again.mp3", commit)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "/kept.mp3", existing)
	assert.Equal(t, 1, calls, "commit runs only for the accepted candidate")
}

func TestIndex_CheckAndRegisterConcurrent(t *testing.T) {
	x := New()
	a := fpOf(t, "same content")

	const n = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	wg.Add(n)
	for i := range n {
		go func() {
			defer wg.Done()
			if _, ok := x.CheckAndRegister(a, SessionTag(string(rune('a'+i%26)))); ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, x.Len())
}

func TestIndex_DuplicateGroups(t *testing.T) {
	x := New()
	a := fpOf(t, "alpha")
	b := fpOf(t, "beta")
	c := fpOf(t, "gamma")

	x.add(a, "/z/a1.mp3")
	x.add(a, "/z/a2.mp3")
	x.add(b, "/b/only.mp3")
	x.add(c, "/c/c1.flac")
	x.add(c, "/c/c2.flac")
	x.add(c, "/c/c3.flac")

	groups := x.DuplicateGroups()
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"/c/c1.flac", "/c/c2.flac", "/c/c3.flac"}, groups[0].Sources)
	assert.Equal(t, c, groups[0].Fingerprint)
	assert.Equal(t, []string{"/z/a1.mp3", "/z/a2.mp3"}, groups[1].Sources)
	assert.Equal(t, 6, x.SourceCount())
}

func TestIndex_FingerprintsStableOrder(t *testing.T) {
	x := New()
	for _, s := range []string{"one", "two", "three", "four"} {
		x.Register(fpOf(t, s), s)
	}
	first := x.Fingerprints()
	second := x.Fingerprints()
	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
}

func TestSessionTag(t *testing.T) {
	tag := SessionTag("http://example.com/a.mp3")
	assert.True(t, IsSessionTag(tag))
	assert.False(t, IsSessionTag("/music/a.mp3"))
	assert.False(t, IsSessionTag(""))
}
