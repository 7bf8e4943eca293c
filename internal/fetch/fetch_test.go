package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-dedup/internal/fingerprint"
	"github.com/inodb/vibe-dedup/internal/gate"
	"github.com/inodb/vibe-dedup/internal/index"
	"github.com/inodb/vibe-dedup/internal/scan"
)

// audioServer serves fixed payloads by path and counts requests.
type audioServer struct {
	mu    sync.Mutex
	files map[string][]byte
	hits  atomic.Int64
}

func (s *audioServer) put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
}

func (s *audioServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	switch r.URL.Path {
	case "/lying.mp3":
		// Declares more bytes than it sends.
		w.Header().Set("Content-Length", "100")
		w.Write([]byte("short"))
		return
	case "/empty.mp3":
		w.Header().Set("Content-Length", "0")
		return
	}
	s.mu.Lock()
	data, ok := s.files[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func payload(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*31) ^ seed
	}
	return b
}

func setup(t *testing.T, idx *index.Index, files map[string][]byte) (*Fetcher, *gate.Gate, *audioServer, *httptest.Server, string) {
	t.Helper()
	srv := &audioServer{files: files}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	dest := t.TempDir()
	g := gate.New(idx, fingerprint.New(0))
	return New(g, dest), g, srv, ts, dest
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFetch_AcceptsNewFile(t *testing.T) {
	song := payload(300<<10, 1)
	f, g, _, ts, dest := setup(t, nil, map[string][]byte{"/songs/track.mp3": song})

	res, err := f.Fetch(context.Background(), ts.URL+"/songs/track.mp3")
	require.NoError(t, err)

	assert.Equal(t, StatusAccepted, res.Status)
	assert.Equal(t, filepath.Join(dest, "track.mp3"), res.Path)
	assert.Equal(t, int64(len(song)), res.Bytes)
	assert.Equal(t, gate.Accept, res.Decision.Verdict)
	assert.Equal(t, []string{"track.mp3"}, listDir(t, dest))

	got, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, song, got)
	assert.Equal(t, gate.Tally{Accepted: 1}, g.Tally())
}

func TestFetch_RejectsCopyOfLibraryFile(t *testing.T) {
	library := t.TempDir()
	song := payload(200<<10, 2)
	require.NoError(t, os.WriteFile(filepath.Join(library, "original.flac"), song, 0o644))

	idx, _, err := index.NewBuilder(scan.NewWalker(nil), fingerprint.New(0)).Build(context.Background(), []string{library})
	require.NoError(t, err)

	f, g, _, ts, dest := setup(t, idx, map[string][]byte{"/renamed.flac": song})

	res, err := f.Fetch(context.Background(), ts.URL+"/renamed.flac")
	require.NoError(t, err)

	assert.Equal(t, StatusDuplicate, res.Status)
	assert.Equal(t, filepath.Join(library, "original.flac"), res.Decision.Existing)
	assert.Empty(t, listDir(t, dest), "rejected download must not be persisted")
	assert.Equal(t, gate.Tally{RejectedAsDuplicate: 1}, g.Tally())
}

func TestRun_CollapsesDuplicatesWithinBatch(t *testing.T) {
	song := payload(100<<10, 3)
	files := map[string][]byte{
		"/a.mp3": song,
		"/b.mp3": song,
		"/c.mp3": song,
		"/d.mp3": payload(100<<10, 4),
	}
	f, g, _, ts, dest := setup(t, nil, files)

	urls := []string{ts.URL + "/a.mp3", ts.URL + "/b.mp3", ts.URL + "/c.mp3", ts.URL + "/d.mp3"}
	results := f.Run(context.Background(), urls, 4)
	require.Len(t, results, 4)

	statuses := map[Status]int{}
	for i, r := range results {
		assert.Equal(t, urls[i], r.URL)
		statuses[r.Status]++
	}
	assert.Equal(t, map[Status]int{StatusAccepted: 2, StatusDuplicate: 2}, statuses)
	assert.Len(t, listDir(t, dest), 2)
	assert.Equal(t, gate.Tally{Accepted: 2, RejectedAsDuplicate: 2}, g.Tally())
}

func TestFetch_ExistingNameSkipped(t *testing.T) {
	f, g, srv, ts, dest := setup(t, nil, map[string][]byte{"/x.mp3": payload(10, 5)})
	require.NoError(t, os.WriteFile(filepath.Join(dest, "x.mp3"), []byte("already here"), 0o644))

	res, err := f.Fetch(context.Background(), ts.URL+"/x.mp3")
	require.NoError(t, err)
	assert.Equal(t, StatusExists, res.Status)
	assert.Equal(t, int64(0), srv.hits.Load(), "no request for an existing file")
	assert.Equal(t, gate.Tally{}, g.Tally())
}

func TestFetch_HTTPError(t *testing.T) {
	f, _, _, ts, dest := setup(t, nil, nil)

	res, err := f.Fetch(context.Background(), ts.URL+"/missing.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, err, res.Err)
	assert.Empty(t, listDir(t, dest))
}

func TestFetch_TruncatedBodyExcluded(t *testing.T) {
	f, g, _, ts, dest := setup(t, nil, nil)

	res, err := f.Fetch(context.Background(), ts.URL+"/lying.mp3")
	require.Error(t, err)
	assert.ErrorIs(t, err, fingerprint.ErrUnreadableSource)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Empty(t, listDir(t, dest), "temp file removed")
	assert.Equal(t, gate.Tally{}, g.Tally())
	assert.Equal(t, 0, g.Index().Len())
}

func TestFetch_EmptyBodyCorrupt(t *testing.T) {
	f, _, _, ts, dest := setup(t, nil, nil)

	_, err := f.Fetch(context.Background(), ts.URL+"/empty.mp3")
	assert.ErrorIs(t, err, fingerprint.ErrCorruptSource)
	assert.Empty(t, listDir(t, dest))
}

func TestFetch_FailedDownloadReleasesName(t *testing.T) {
	f, _, srv, ts, _ := setup(t, nil, map[string][]byte{})

	_, err := f.Fetch(context.Background(), ts.URL+"/later.mp3")
	require.Error(t, err)

	srv.put("/later.mp3", payload(64, 6))
	res, err := f.Fetch(context.Background(), ts.URL+"/later.mp3")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, res.Status)
}

func TestFileName(t *testing.T) {
	tests := []struct {
		url, want string
		wantErr   bool
	}{
		{"http://host/music/song.mp3", "song.mp3", false},
		{"http://host/a/My%20Song%3F.mp3?x=1", "My Song_.mp3", false},
		{"http://host/a/b%7Cc%2A.m4a", "b_c_.m4a", false},
		{"http://host/", "", true},
		{"http://host", "", true},
		{"::not a url", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := FileName(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "accepted", StatusAccepted.String())
	assert.Equal(t, "duplicate", StatusDuplicate.String())
	assert.Equal(t, "exists", StatusExists.String())
	assert.Equal(t, "failed", StatusFailed.String())
}

func TestFetch_FailedRenameLeavesContentUnregistered(t *testing.T) {
	song := payload(150<<10, 9)
	dest := t.TempDir()
	srv := &audioServer{files: map[string][]byte{"/a.mp3": song, "/b.mp3": song}}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/a.mp3" {
			// Something else takes the name after it was claimed.
			assert.NoError(t, os.Mkdir(filepath.Join(dest, "a.mp3"), 0o755))
		}
		srv.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	g := gate.New(nil, fingerprint.New(0))
	f := New(g, dest)

	first, err := f.Fetch(context.Background(), ts.URL+"/a.mp3")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, first.Status)
	assert.Equal(t, gate.Tally{}, g.Tally())
	assert.Zero(t, g.Index().Len())

	second, err := f.Fetch(context.Background(), ts.URL+"/b.mp3")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, second.Status)
	assert.Equal(t, gate.Tally{Accepted: 1}, g.Tally())

	got, err := os.ReadFile(filepath.Join(dest, "b.mp3"))
	require.NoError(t, err)
	assert.Equal(t, song, got)
	assert.ElementsMatch(t, []string{"a.mp3", "b.mp3"}, listDir(t, dest))
}
