// Package dirindex implements the Directory Renderer: it lists one
// directory level (or recursively searches a subtree) and renders either
// an HTML index page or a JSON payload.
package dirindex

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	"github.com/dufs-go/dufs/internal/fsroot"
	"github.com/dufs-go/dufs/internal/model"
)

// Crumb is one segment of the breadcrumb trail.
type Crumb struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// Payload is the JSON substituted into the HTML template's __SLOT__, and
// also what the JSON query mode returns directly.
type Payload struct {
	Breadcrumb  []Crumb          `json:"breadcrumb"`
	Paths       []model.PathItem `json:"paths"`
	AllowUpload bool             `json:"allow_upload"`
	AllowDelete bool             `json:"allow_delete"`
	DirExists   bool             `json:"dir_exists"`
}

// BuildBreadcrumb splits a request's URL path into clickable segments,
// each linking to its own ancestor directory.
func BuildBreadcrumb(urlPath string) []Crumb {
	urlPath = strings.Trim(urlPath, "/")
	crumbs := []Crumb{{Name: "", Link: "/"}}
	if urlPath == "" {
		return crumbs
	}

	parts := strings.Split(urlPath, "/")
	link := ""
	for _, part := range parts {
		link += "/" + part
		crumbs = append(crumbs, Crumb{Name: part, Link: link + "/"})
	}
	return crumbs
}

// kindOf classifies a directory entry using Lstat so symlinked entries
// are distinguished from plain ones, per the PathItem data model.
func kindOf(fs *fsroot.FS, rel string, fallback os.FileInfo) model.Kind {
	lst, err := fs.Lstat(rel)
	if err != nil {
		lst = fallback
	}
	isLink := lst.Mode()&os.ModeSymlink != 0
	isDir := fallback.IsDir()
	if isLink {
		// Directory-read and walk entries carry Lstat info, so a
		// symlink's target kind needs a following Stat.
		if target, err := fs.Stat(rel); err == nil {
			isDir = target.IsDir()
		}
	}
	switch {
	case isDir && isLink:
		return model.SymlinkDir
	case isDir:
		return model.Dir
	case isLink:
		return model.SymlinkFile
	default:
		return model.File
	}
}

// ListDir lists one directory level of fs at rel. Entries that fail stat
// are silently skipped, as the spec requires.
func ListDir(fs *fsroot.FS, rel string, hidden []string) ([]model.PathItem, error) {
	entries, err := fs.ReadDir(rel)
	if err != nil {
		return nil, err
	}

	hiddenGlobs := compileHidden(hidden)
	items := make([]model.PathItem, 0, len(entries))
	for _, e := range entries {
		if isHidden(e.Name(), hiddenGlobs) {
			continue
		}
		childRel := joinRel(rel, e.Name())
		kind := kindOf(fs, childRel, e)
		item := model.PathItem{Kind: kind, Name: e.Name(), MTime: e.ModTime().UnixMilli()}
		if !kind.IsDir() {
			item.Size = e.Size()
		}
		items = append(items, item)
	}

	model.SortPathItems(items)
	return items, nil
}

// Search recursively walks fs at rootRel and returns every entry whose
// lowercased name contains the lowercased query. Entries that fail stat
// mid-walk are silently skipped.
func Search(fs *fsroot.FS, rootRel, query string) ([]model.PathItem, error) {
	query = strings.ToLower(query)
	var items []model.PathItem

	err := fs.Walk(rootRel, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if path == rootRel {
			return nil
		}
		if !strings.Contains(strings.ToLower(info.Name()), query) {
			return nil
		}

		kind := kindOf(fs, path, info)
		item := model.PathItem{Kind: kind, Name: relName(rootRel, path), MTime: info.ModTime().UnixMilli()}
		if !kind.IsDir() {
			item.Size = info.Size()
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	model.SortPathItems(items)
	return items, nil
}

func relName(root, path string) string {
	if root == "" {
		return path
	}
	return strings.TrimPrefix(strings.TrimPrefix(path, root), string(os.PathSeparator))
}

func joinRel(rel, name string) string {
	if rel == "" {
		return name
	}
	return rel + string(os.PathSeparator) + name
}

// compileHidden compiles each --hidden glob once per call site, rather
// than once per directory entry, since the pattern set never changes
// for the lifetime of a single ListDir call. Patterns that fail to
// compile are skipped rather than propagated, matching --hidden's
// best-effort semantics.
func compileHidden(patterns []string) []glob.Glob {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			continue
		}
		globs = append(globs, g)
	}
	return globs
}

func isHidden(name string, globs []glob.Glob) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// RenderHTML substitutes the JSON payload into the template's __SLOT__
// marker and writes the result as the full response body. headOnly
// sends headers only, matching the file server's HEAD handling.
func RenderHTML(w http.ResponseWriter, tmpl []byte, payload Payload, headOnly bool) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	out := bytes.Replace(tmpl, []byte("__SLOT__"), data, 1)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	if headOnly {
		w.WriteHeader(http.StatusOK)
		return nil
	}
	_, err = w.Write(out)
	return err
}

// WriteJSON writes payload as the JSON response body.
func WriteJSON(w http.ResponseWriter, v any, headOnly bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if headOnly {
		w.WriteHeader(http.StatusOK)
		return nil
	}
	_, err = w.Write(data)
	return err
}
