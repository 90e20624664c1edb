package avatar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-faces/internal/domain"
)

type avatarServer struct {
	*httptest.Server
	lastModified string
	headStatus   int
	gets         atomic.Int64
	heads        atomic.Int64
}

func newAvatarServer(t *testing.T) *avatarServer {
	t.Helper()
	srv := &avatarServer{headStatus: http.StatusOK}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			srv.heads.Add(1)
			if srv.lastModified != "" {
				w.Header().Set("Last-Modified", srv.lastModified)
			}
			w.WriteHeader(srv.headStatus)
			return
		}
		srv.gets.Add(1)
		w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSyncer(t *testing.T, srv *avatarServer) (*Syncer, string) {
	t.Helper()
	dir := t.TempDir()
	logger, _ := test.NewNullLogger()
	return NewSyncer(Config{
		Dir:        dir,
		HTTPClient: srv.Client(),
		Logger:     logger,
	}), dir
}

func user(srv *avatarServer, login string) domain.User {
	return domain.User{Login: login, AvatarURL: srv.URL + "/" + login + ".png", Type: "User"}
}

func TestSyncDownloadsMissingAvatar(t *testing.T) {
	srv := newAvatarServer(t)
	syncer, dir := newTestSyncer(t, srv)

	downloaded := syncer.Sync(context.Background(), []domain.User{user(srv, "Alice")})
	assert.Equal(t, 1, downloaded)
	assert.Equal(t, int64(1), srv.gets.Load())
	assert.Equal(t, int64(0), srv.heads.Load(), "no probe when the file is missing")

	data, err := os.ReadFile(filepath.Join(dir, "alice.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestSyncSkipsWhenLocalNewer(t *testing.T) {
	srv := newAvatarServer(t)
	srv.lastModified = time.Now().Add(-24 * time.Hour).UTC().Format(http.TimeFormat)
	syncer, dir := newTestSyncer(t, srv)

	path := filepath.Join(dir, "alice.png")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	downloaded := syncer.Sync(context.Background(), []domain.User{user(srv, "alice")})
	assert.Equal(t, 0, downloaded)
	assert.Equal(t, int64(0), srv.gets.Load())
	assert.Equal(t, int64(1), srv.heads.Load())
}

func TestSyncDownloadsWhenRemoteNewer(t *testing.T) {
	srv := newAvatarServer(t)
	srv.lastModified = time.Now().UTC().Format(http.TimeFormat)
	syncer, dir := newTestSyncer(t, srv)

	path := filepath.Join(dir, "alice.png")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, stale, stale))

	downloaded := syncer.Sync(context.Background(), []domain.User{user(srv, "alice")})
	assert.Equal(t, 1, downloaded)
	assert.Equal(t, int64(1), srv.gets.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestSyncKeepsFileWhenProbeFails(t *testing.T) {
	srv := newAvatarServer(t)
	srv.headStatus = http.StatusInternalServerError
	syncer, dir := newTestSyncer(t, srv)

	path := filepath.Join(dir, "alice.png")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, stale, stale))

	downloaded := syncer.Sync(context.Background(), []domain.User{user(srv, "alice")})
	assert.Equal(t, 0, downloaded)
	assert.Equal(t, int64(0), srv.gets.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data), "existing file survives a failed probe")
}

func TestPruneRemovesStaleAvatarsOnly(t *testing.T) {
	srv := newAvatarServer(t)
	syncer, dir := newTestSyncer(t, srv)

	for _, name := range []string{"alice.png", "bob.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	removed := syncer.Prune([]string{"Alice"})
	assert.Equal(t, 1, removed)

	assert.FileExists(t, filepath.Join(dir, "alice.png"))
	assert.NoFileExists(t, filepath.Join(dir, "bob.png"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"), "non-png files are never touched")
}

func TestPruneIsIdempotent(t *testing.T) {
	srv := newAvatarServer(t)
	syncer, dir := newTestSyncer(t, srv)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bob.png"), []byte("x"), 0o644))

	assert.Equal(t, 1, syncer.Prune([]string{"alice"}))
	assert.Equal(t, 0, syncer.Prune([]string{"alice"}), "second run deletes nothing")
}

func TestPruneMissingDir(t *testing.T) {
	logger, _ := test.NewNullLogger()
	syncer := NewSyncer(Config{Dir: filepath.Join(t.TempDir(), "nope"), Logger: logger})
	assert.Equal(t, 0, syncer.Prune([]string{"alice"}))
}
