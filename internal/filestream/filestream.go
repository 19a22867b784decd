// Package filestream implements the File Streamer: it writes a file's
// bytes (optionally a sub-range) to an http.ResponseWriter in fixed-size
// chunks, honoring conditional GET and Range/If-Range semantics.
package filestream

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dufs-go/dufs/internal/cachecheck"
	"github.com/dufs-go/dufs/internal/chunkio"
	"github.com/dufs-go/dufs/internal/fsroot"
)

// Serve writes the file named rel (whose metadata is already known as
// info) to w. headOnly suppresses the body, matching the HEAD method.
// All status-code decisions (304, 206, 416, 200) happen before any body
// byte is written, satisfying the "no response writes partial body bytes
// before the final status code is chosen" invariant.
func Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, fs *fsroot.FS, rel string, info os.FileInfo, headOnly bool) error {
	size := info.Size()
	etag := cachecheck.ETag(info.ModTime(), size)
	lastModified := info.ModTime().UTC().Format(http.TimeFormat)

	name := filepath.Base(rel)
	setCommonHeaders(w, name, etag, lastModified)

	if cachecheck.NotModified(r, etag, info.ModTime()) {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	rangeHeader := r.Header.Get("Range")
	honorRange := rangeHeader != "" && cachecheck.RangeHonored(r, etag, info.ModTime())

	if !honorRange {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if headOnly {
			return nil
		}
		f, err := fs.Open(rel)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = chunkio.CopyWithCtx(ctx, w, f)
		return err
	}

	byteRange, err := chunkio.ParseRange(rangeHeader)
	if err != nil {
		if err == chunkio.ErrNoRange {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			w.WriteHeader(http.StatusOK)
			if headOnly {
				return nil
			}
			f, openErr := fs.Open(rel)
			if openErr != nil {
				return openErr
			}
			defer f.Close()
			_, copyErr := chunkio.CopyWithCtx(ctx, w, f)
			return copyErr
		}
		writeRangeNotSatisfiable(w, size)
		return nil
	}

	resolved, err := chunkio.Resolve(byteRange, size)
	if err != nil {
		writeRangeNotSatisfiable(w, size)
		return nil
	}

	w.Header().Set("Content-Range", resolved.ContentRangeHeader(size))
	w.Header().Set("Content-Length", strconv.FormatInt(resolved.Length(), 10))
	w.WriteHeader(http.StatusPartialContent)
	if headOnly {
		return nil
	}

	f, err := fs.Open(rel)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(resolved.Start, 0); err != nil {
		return err
	}
	_, err = chunkio.CopyN(ctx, w, f, resolved.Length())
	return err
}

func setCommonHeaders(w http.ResponseWriter, name, etag, lastModified string) {
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", `inline; filename="`+url.PathEscape(name)+`"`)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", lastModified)
}

func writeRangeNotSatisfiable(w http.ResponseWriter, size int64) {
	w.Header().Set("Content-Range", chunkio.UnsatisfiableContentRangeHeader(size))
	w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
}
