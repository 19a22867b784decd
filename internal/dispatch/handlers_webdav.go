package dispatch

import (
	"net/http"
	"strings"

	"github.com/dufs-go/dufs/internal/dirindex"
	"github.com/dufs-go/dufs/internal/httperr"
	"github.com/dufs-go/dufs/internal/webdav"
)

// handlePropfind renders the Multi-Status envelope for a file (a single
// entry) or a directory (itself plus, unless Depth: 0, its immediate
// children). A missing resource 404s; Depth: infinity is bounded to the
// same self-plus-children result as Depth: 1 rather than ever walking the
// full subtree.
func (s *Server) handlePropfind(w http.ResponseWriter, r *http.Request, rel string, state resourceState, info interface{}) {
	if state == stateMissing {
		writeErr(w, httperr.NewNotFound(""))
		return
	}

	depth, err := webdav.ParseDepth(r.Header.Get("Depth"))
	if err != nil {
		writeErr(w, httperr.NewBadRequest("%s", err))
		return
	}

	selfHref := r.URL.Path
	if state == stateDir && !strings.HasSuffix(selfHref, "/") {
		selfHref += "/"
	}

	entries := []webdav.Entry{s.entryFor(selfHref, rel, state)}

	if state == stateDir && depth != 0 {
		items, err := dirindex.ListDir(s.fs, rel, s.cfg.Hidden)
		if err != nil {
			writeErr(w, httperr.NewForbidden(""))
			return
		}
		base := strings.TrimSuffix(selfHref, "/")
		for _, item := range items {
			href := base + "/" + item.Name
			childRel := joinRelPath(rel, item.Name)
			childState := stateFile
			if item.Kind.IsDir() {
				childState = stateDir
				href += "/"
			}
			entries = append(entries, s.entryFor(href, childRel, childState))
		}
	}

	if err := webdav.WriteMultiStatus(w, entries); err != nil {
		s.logger.Warn("propfind write failed", "error", err)
	}
}

func (s *Server) entryFor(href, rel string, state resourceState) webdav.Entry {
	info, err := s.fs.Stat(rel)
	if err != nil {
		return webdav.Entry{Href: href, IsCollection: state == stateDir}
	}
	return webdav.Entry{
		Href:         href,
		IsCollection: state == stateDir,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
	}
}

// handlePropPatch always rejects every proposed property change, since
// no custom property is ever persisted. Only existing files accept the
// request at all; directories and missing resources 404.
func (s *Server) handlePropPatch(w http.ResponseWriter, r *http.Request, rel string, state resourceState) {
	if state != stateFile {
		writeErr(w, httperr.NewNotFound(""))
		return
	}
	if err := webdav.WritePropPatchForbidden(w, r.URL.Path, []string{"displayname"}); err != nil {
		s.logger.Warn("proppatch write failed", "error", err)
	}
}

// handleLock simulates locking: a fresh token is minted and returned but
// nothing is recorded anywhere, so a second LOCK on the same resource
// always succeeds too. Only existing files accept LOCK; directories and
// missing resources 404.
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request, rel string, state resourceState) {
	if state != stateFile {
		writeErr(w, httperr.NewNotFound(""))
		return
	}
	_, authed := r.Header["Authorization"]
	token := webdav.NewLockToken(authed)
	if err := webdav.WriteLockResponse(w, r.URL.Path, token); err != nil {
		s.logger.Warn("lock write failed", "error", err)
	}
}

// handleUnlock is a no-op that 404s only when the target doesn't exist;
// an existing file or directory always reports 204, since there is never
// any lock state to release.
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request, state resourceState) {
	if state == stateMissing {
		writeErr(w, httperr.NewNotFound(""))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
