// Package zipstream implements the ZIP Streamer: it walks a directory
// subtree depth-first and emits a Deflate-compressed ZIP archive to an
// http.ResponseWriter through an in-process pipe, without ever buffering
// the whole archive or a whole member file in memory.
package zipstream

import (
	"archive/zip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"

	"github.com/dufs-go/dufs/internal/chunkio"
	"github.com/dufs-go/dufs/internal/fsroot"
)

// Stream zips the directory named rel (relative to fs's root) and
// writes the archive to w. archiveName is used for Content-Disposition,
// without the ".zip" suffix. followSymlinks controls whether symlinked
// files are included; symlinked directories are never descended into,
// matching the File Streamer's containment stance.
func Stream(ctx context.Context, w http.ResponseWriter, fs *fsroot.FS, rel, archiveName string, followSymlinks bool, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+archiveName+`.zip"`)
	w.WriteHeader(http.StatusOK)

	pr, pw := io.Pipe()

	go produce(ctx, pw, fs, rel, followSymlinks, logger)

	if _, err := chunkio.CopyWithCtx(ctx, w, pr); err != nil && logger != nil {
		logger.Warn("zip stream interrupted", "path", rel, "error", err)
	}
}

func produce(ctx context.Context, pw *io.PipeWriter, fs *fsroot.FS, rootRel string, followSymlinks bool, logger *slog.Logger) {
	zw := zip.NewWriter(pw)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	err := fs.Walk(rootRel, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if logger != nil {
				logger.Warn("zip walk error", "path", path, "error", walkErr)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if info.IsDir() {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 && !followSymlinks {
			return nil
		}

		relName, err := filepath.Rel(rootRel, path)
		if err != nil {
			relName = path
		}
		relName = filepath.ToSlash(relName)

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return nil
		}
		header.Name = relName
		header.Method = zip.Deflate

		entry, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		f, err := fs.Open(path)
		if err != nil {
			if logger != nil {
				logger.Warn("zip open error", "path", path, "error", err)
			}
			return nil
		}
		defer f.Close()

		_, err = chunkio.CopyWithCtx(ctx, entry, f)
		return err
	})

	if err != nil && logger != nil {
		logger.Warn("zip producer stopped early", "path", rootRel, "error", err)
	}

	if closeErr := zw.Close(); closeErr != nil && logger != nil {
		logger.Warn("zip writer close failed", "path", rootRel, "error", closeErr)
	}
	// Failures here cannot change the response status: headers and the
	// 200 status line are already committed by the time the producer
	// runs.
	_ = pw.Close()
}
