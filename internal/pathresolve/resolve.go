// Package pathresolve turns a request URI path into a candidate path
// relative to the configured root and, once the caller has stat'd it,
// verifies it did not escape the root through a symlink.
package pathresolve

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dufs-go/dufs/internal/httperr"
)

// Resolver decodes and contains paths under a single canonical root, per
// the server's immutable configuration.
type Resolver struct {
	// Root is the canonicalized absolute filesystem root every resolved
	// path is rooted at.
	Root string
	// Prefix is the URL path prefix stripped from every request before
	// resolution. Empty means no prefix is configured.
	Prefix string
	// FollowSymlinks, when true, skips the post-stat containment check.
	FollowSymlinks bool
}

// Resolve decodes reqPath (the request URI's path component, still
// percent-encoded and slash-separated) into a path relative to r.Root,
// using OS-native separators and no leading separator. The root itself
// resolves to "". It does not touch the filesystem; call Contain after
// stat'ing the result when r.FollowSymlinks is false.
func (r Resolver) Resolve(reqPath string) (string, error) {
	p := strings.TrimPrefix(reqPath, "/")

	decoded, err := url.PathUnescape(p)
	if err != nil {
		return "", httperr.NewNotFound("decode path %q: %w", reqPath, err)
	}
	p = decoded

	if runtime.GOOS == "windows" {
		p = strings.ReplaceAll(p, "/", "\\")
	}

	if r.Prefix != "" {
		prefix := strings.Trim(r.Prefix, "/")
		switch {
		case p == prefix:
			p = ""
		case strings.HasPrefix(p, prefix+"/"):
			p = p[len(prefix)+1:]
		default:
			return "", httperr.NewNotFound("path %q missing configured prefix %q", reqPath, r.Prefix)
		}
	}

	clean := filepath.Clean(string(filepath.Separator) + filepath.FromSlash(p))
	clean = strings.TrimPrefix(clean, string(filepath.Separator))
	if clean == "." {
		clean = ""
	}
	return clean, nil
}

// Abs joins a root-relative path (as returned by Resolve) onto r.Root,
// producing a real filesystem path for calls that need one directly,
// such as Contain's symlink resolution.
func (r Resolver) Abs(relPath string) string {
	if relPath == "" {
		return r.Root
	}
	return filepath.Join(r.Root, relPath)
}

// Contain verifies that relPath, once every symlink component is
// resolved, still lies within r.Root. It is the security-critical check
// the symlink policy design note calls load-bearing: skipping it for a
// path that escapes the root must never happen silently.
func (r Resolver) Contain(relPath string) error {
	if r.FollowSymlinks {
		return nil
	}

	absPath := r.Abs(relPath)

	real, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return httperr.NewNotFound("resolve symlinks for %q: %w", absPath, err)
	}

	root, err := filepath.EvalSymlinks(r.Root)
	if err != nil {
		root = r.Root
	}

	if real != root && !strings.HasPrefix(real, root+string(filepath.Separator)) {
		return httperr.NewNotFound("path %q escapes root %q", relPath, r.Root)
	}

	return nil
}

// ToSlash renders a root-relative path (OS separators) with forward
// slashes, the form the access controller's rule paths are matched in.
func ToSlash(relPath string) string {
	return filepath.ToSlash(relPath)
}

// StripPrefix removes the configured URL prefix from urlPath exactly
// once. The dispatcher does not call it: breadcrumbs are built from the
// request path as received.
func (r Resolver) StripPrefix(urlPath string) string {
	if r.Prefix == "" {
		return urlPath
	}
	prefix := "/" + strings.Trim(r.Prefix, "/")
	return strings.TrimPrefix(urlPath, prefix)
}

// WithPrefix re-adds the configured URL prefix, the inverse of
// StripPrefix. The dispatcher does not call it: PROPFIND hrefs are built
// from the request path, which already carries the prefix.
func (r Resolver) WithPrefix(urlPath string) string {
	if r.Prefix == "" {
		return urlPath
	}
	prefix := "/" + strings.Trim(r.Prefix, "/")
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	return prefix + urlPath
}
