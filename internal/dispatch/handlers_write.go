package dispatch

import (
	"context"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/dufs-go/dufs/internal/chunkio"
	"github.com/dufs-go/dufs/internal/httperr"
)

// handlePut implements upload. A missing resource may always be created
// when uploads are allowed; an existing file may only be overwritten
// when deletes are also allowed (or the file is empty), and a directory
// can never be a PUT target.
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, rel string, state resourceState, readOnly bool) {
	if readOnly || !s.cfg.AllowUpload {
		writeErr(w, httperr.NewForbidden(""))
		return
	}
	if state == stateDir {
		writeErr(w, httperr.NewForbidden(""))
		return
	}
	if state == stateFile {
		info, err := s.fs.Stat(rel)
		if err == nil && !s.cfg.AllowDelete && info.Size() > 0 {
			writeErr(w, httperr.NewForbidden(""))
			return
		}
	}

	if err := s.ensureParent(rel); err != nil {
		writeErr(w, httperr.NewInternal(err))
		return
	}

	f, err := s.fs.Create(rel)
	if err != nil {
		writeErr(w, httperr.NewForbidden(""))
		return
	}
	defer f.Close()

	if _, err := chunkio.CopyWithCtx(r.Context(), f, r.Body); err != nil {
		writeErr(w, httperr.NewInternal(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// handleDelete removes a file or recursively removes a directory.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, rel string, state resourceState, readOnly bool) {
	if readOnly || !s.cfg.AllowDelete {
		writeErr(w, httperr.NewForbidden(""))
		return
	}
	if state == stateMissing {
		writeErr(w, httperr.NewNotFound(""))
		return
	}

	var err error
	if state == stateDir {
		err = s.fs.RemoveAll(rel)
	} else {
		err = s.fs.Remove(rel)
	}
	if err != nil {
		writeErr(w, httperr.NewInternal(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMkcol creates a new directory, including any missing ancestors.
func (s *Server) handleMkcol(w http.ResponseWriter, r *http.Request, rel string, state resourceState, readOnly bool) {
	if readOnly || !s.cfg.AllowUpload || state != stateMissing {
		writeErr(w, httperr.NewForbidden(""))
		return
	}
	if err := s.fs.MkdirAll(rel, 0o755); err != nil {
		writeErr(w, httperr.NewInternal(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// handleCopy duplicates a single file onto the Destination header's
// target. Directories are never copy sources.
func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request, rel string, state resourceState, readOnly bool) {
	if readOnly || !s.cfg.AllowUpload {
		writeErr(w, httperr.NewForbidden(""))
		return
	}
	if state == stateMissing {
		writeErr(w, httperr.NewNotFound(""))
		return
	}
	if state == stateDir {
		writeErr(w, httperr.NewForbidden(""))
		return
	}

	destRel, err := s.resolveDestination(r)
	if err != nil {
		writeErr(w, httperr.NewBadRequest(""))
		return
	}

	if err := s.ensureParent(destRel); err != nil {
		writeErr(w, httperr.NewInternal(err))
		return
	}
	if err := s.copyFile(r.Context(), rel, destRel); err != nil {
		writeErr(w, httperr.NewInternal(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMove renames a file or directory onto the Destination header's
// target, creating missing ancestor directories first.
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request, rel string, state resourceState, readOnly bool) {
	if readOnly || !s.cfg.AllowUpload || !s.cfg.AllowDelete {
		writeErr(w, httperr.NewForbidden(""))
		return
	}
	if state == stateMissing {
		writeErr(w, httperr.NewNotFound(""))
		return
	}

	destRel, err := s.resolveDestination(r)
	if err != nil {
		writeErr(w, httperr.NewBadRequest(""))
		return
	}

	if err := s.ensureParent(destRel); err != nil {
		writeErr(w, httperr.NewInternal(err))
		return
	}
	if err := s.fs.Rename(rel, destRel); err != nil {
		writeErr(w, httperr.NewInternal(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveDestination extracts the path component of the Destination
// header (a full or relative URL) and resolves it exactly as the
// request path itself would be.
func (s *Server) resolveDestination(r *http.Request) (string, error) {
	raw := r.Header.Get("Destination")
	if raw == "" {
		return "", httperr.NewBadRequest("missing Destination header")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return s.resolver.Resolve(u.Path)
}

// ensureParent creates rel's parent directory tree if it doesn't already
// exist, matching the reference server's ensure_path_parent.
func (s *Server) ensureParent(rel string) error {
	parent := filepath.Dir(rel)
	if parent == "." || parent == "" {
		return nil
	}
	if exists, _ := s.fs.DirExists(parent); exists {
		return nil
	}
	return s.fs.MkdirAll(parent, 0o755)
}

// copyFile streams src onto dst, truncating any existing destination.
func (s *Server) copyFile(ctx context.Context, srcRel, dstRel string) error {
	src, err := s.fs.Open(srcRel)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := s.fs.Create(dstRel)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = chunkio.CopyWithCtx(ctx, dst, src)
	return err
}
