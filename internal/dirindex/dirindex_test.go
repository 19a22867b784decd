package dirindex

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dufs-go/dufs/internal/fsroot"
)

func TestBuildBreadcrumb(t *testing.T) {
	crumbs := BuildBreadcrumb("/a/b/c")
	require.Len(t, crumbs, 4)
	assert.Equal(t, "", crumbs[0].Name)
	assert.Equal(t, "a", crumbs[1].Name)
	assert.Equal(t, "/a/b/c/", crumbs[3].Link)
}

func TestListDirSortsAndSkipsHidden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "zsub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".secret"), []byte("x"), 0o644))

	fs, err := fsroot.New(dir)
	require.NoError(t, err)

	items, err := ListDir(fs, "", []string{".*"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "zsub", items[0].Name)
	assert.Equal(t, "a.txt", items[1].Name)
}

func TestSearchFindsNestedMatches(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "needle.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "also-needle.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "other.txt"), []byte("x"), 0o644))

	fs, err := fsroot.New(dir)
	require.NoError(t, err)

	items, err := Search(fs, "", "needle")
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestRenderHTMLSubstitutesSlot(t *testing.T) {
	tmpl := []byte(`<html>__SLOT__</html>`)
	w := httptest.NewRecorder()

	require.NoError(t, RenderHTML(w, tmpl, Payload{DirExists: true}, false))
	assert.Contains(t, w.Body.String(), `"dir_exists":true`)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
}
