package filestream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dufs-go/dufs/internal/cachecheck"
	"github.com/dufs-go/dufs/internal/fsroot"
)

func setup(t *testing.T) (*fsroot.FS, os.FileInfo) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello"), 0o644))

	fs, err := fsroot.New(dir)
	require.NoError(t, err)
	info, err := fs.Stat("hello.txt")
	require.NoError(t, err)
	return fs, info
}

func TestServeFullBody(t *testing.T) {
	fs, info := setup(t)
	r := httptest.NewRequest(http.MethodGet, "/hello.txt", nil)
	w := httptest.NewRecorder()

	require.NoError(t, Serve(context.Background(), w, r, fs, "hello.txt", info, false))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())
	assert.Equal(t, "5", w.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
	assert.NotEmpty(t, w.Header().Get("ETag"))
}

func TestServeRange(t *testing.T) {
	fs, info := setup(t)
	r := httptest.NewRequest(http.MethodGet, "/hello.txt", nil)
	r.Header.Set("Range", "bytes=1-3")
	w := httptest.NewRecorder()

	require.NoError(t, Serve(context.Background(), w, r, fs, "hello.txt", info, false))

	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "ell", w.Body.String())
	assert.Equal(t, "bytes 1-3/5", w.Header().Get("Content-Range"))
}

func TestServeUnsatisfiableRange(t *testing.T) {
	fs, info := setup(t)
	r := httptest.NewRequest(http.MethodGet, "/hello.txt", nil)
	r.Header.Set("Range", "bytes=100-200")
	w := httptest.NewRecorder()

	require.NoError(t, Serve(context.Background(), w, r, fs, "hello.txt", info, false))

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
	assert.Equal(t, "bytes */5", w.Header().Get("Content-Range"))
}

func TestServeNotModified(t *testing.T) {
	fs, info := setup(t)
	etag := cachecheck.ETag(info.ModTime(), info.Size())

	r := httptest.NewRequest(http.MethodGet, "/hello.txt", nil)
	r.Header.Set("If-None-Match", etag)
	w := httptest.NewRecorder()

	require.NoError(t, Serve(context.Background(), w, r, fs, "hello.txt", info, false))
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestServeHeadOmitsBody(t *testing.T) {
	fs, info := setup(t)
	r := httptest.NewRequest(http.MethodHead, "/hello.txt", nil)
	w := httptest.NewRecorder()

	require.NoError(t, Serve(context.Background(), w, r, fs, "hello.txt", info, true))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "5", w.Header().Get("Content-Length"))
}
