// Package dispatch implements the Method Dispatcher: the top-level
// decision procedure that fuses the static file server, the WebDAV
// responder and the browser index UI over a single filesystem root.
package dispatch

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/dufs-go/dufs/internal/accessctl"
	"github.com/dufs-go/dufs/internal/authchallenge"
	"github.com/dufs-go/dufs/internal/config"
	"github.com/dufs-go/dufs/internal/filestream"
	"github.com/dufs-go/dufs/internal/fsroot"
	"github.com/dufs-go/dufs/internal/httperr"
	"github.com/dufs-go/dufs/internal/logfmt"
	"github.com/dufs-go/dufs/internal/pathresolve"
	"github.com/dufs-go/dufs/internal/webdav"
)

// resourceState classifies what, if anything, currently lives at a
// resolved path.
type resourceState int

const (
	stateMissing resourceState = iota
	stateDir
	stateFile
)

// Server is the assembled Method Dispatcher: every HTTP request for the
// configured root passes through its ServeHTTP.
type Server struct {
	cfg      *config.Config
	resolver pathresolve.Resolver
	fs       *fsroot.FS
	access   *accessctl.Controller
	auth     *authchallenge.Challenger
	logf     *logfmt.Formatter
	assets   fs.FS
	indexTpl []byte
	logger   *slog.Logger
}

// New assembles a Server from cfg. assets is the resolved asset
// filesystem (override directory or embedded default); indexTpl is the
// contents of its index.html, read once since assets never change after
// startup.
func New(cfg *config.Config, assets fs.FS, indexTpl []byte, logger *slog.Logger) (*Server, error) {
	root, err := fsroot.New(cfg.Root)
	if err != nil {
		return nil, err
	}

	resolver := pathresolve.Resolver{
		Root:           root.Root,
		Prefix:         cfg.PathPrefix,
		FollowSymlinks: cfg.AllowSymlink,
	}

	challenger := authchallenge.New(cfg.AuthScheme)

	var authn accessctl.Authenticator
	if len(cfg.Rules) > 0 {
		authn = challenger
	}

	return &Server{
		cfg:      cfg,
		resolver: resolver,
		fs:       root,
		access:   accessctl.New(cfg.Rules, authn),
		auth:     challenger,
		logf:     logfmt.New(cfg.LogFormat),
		assets:   assets,
		indexTpl: indexTpl,
		logger:   logger,
	}, nil
}

// ServeHTTP is the single entry point the bind-and-listen scaffolding
// calls for every decoded request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	if s.cfg.EnableCORS {
		setCORSHeaders(rec)
	}

	if r.Method == http.MethodGet && r.URL.Path == "/favicon.ico" {
		s.serveFavicon(rec, r)
		s.logRequest(r, rec.status, "")
		return
	}

	if r.Method == http.MethodOptions {
		rec.Header().Set("Allow", webdav.AllowHeader)
		rec.Header().Set("DAV", webdav.DAVHeader)
		rec.WriteHeader(http.StatusOK)
		s.logRequest(r, rec.status, "")
		return
	}

	s.route(rec, r)
	s.logRequest(r, rec.status, remoteUserOf(r))
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	relPath, err := s.resolver.Resolve(r.URL.Path)
	if err != nil {
		writeErr(w, err)
		return
	}

	decision := s.access.Guard(r, "/"+pathresolve.ToSlash(relPath))
	if decision == accessctl.Reject {
		w.Header().Set("WWW-Authenticate", s.auth.Challenge(false))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// When the configured root names a single file rather than a
	// directory, every request that passes the guard serves that one
	// file regardless of method; the resolved path is used only for the
	// access check and is never probed.
	if s.fs.PathIsFile {
		info, err := s.fs.Stat(s.fs.SingleFileRel)
		if err != nil {
			writeErr(w, httperr.NewInternal(err))
			return
		}
		if err := filestream.Serve(r.Context(), w, r, s.fs, s.fs.SingleFileRel, info, r.Method == http.MethodHead); err != nil {
			s.logger.Warn("single-file stream interrupted", "error", err)
		}
		return
	}

	state, info, err := s.probe(relPath)
	if err != nil {
		writeErr(w, err)
		return
	}

	readOnly := decision == accessctl.ReadOnly

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.handleGetHead(w, r, relPath, state, info)
	case http.MethodPut:
		s.handlePut(w, r, relPath, state, readOnly)
	case http.MethodDelete:
		s.handleDelete(w, r, relPath, state, readOnly)
	case "MKCOL":
		s.handleMkcol(w, r, relPath, state, readOnly)
	case "COPY":
		s.handleCopy(w, r, relPath, state, readOnly)
	case "MOVE":
		s.handleMove(w, r, relPath, state, readOnly)
	case "PROPFIND":
		s.handlePropfind(w, r, relPath, state, info)
	case "PROPPATCH":
		s.handlePropPatch(w, r, relPath, state)
	case "LOCK":
		s.handleLock(w, r, relPath, state)
	case "UNLOCK":
		s.handleUnlock(w, r, state)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// probe resolves resource-state, applying the symlink containment
// check before ever reporting a path as existing.
func (s *Server) probe(relPath string) (resourceState, os.FileInfo, error) {
	info, err := s.fs.Stat(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return stateMissing, nil, nil
		}
		return stateMissing, nil, err
	}

	if err := s.resolver.Contain(relPath); err != nil {
		return stateMissing, nil, nil
	}

	if info.IsDir() {
		return stateDir, info, nil
	}
	return stateFile, info, nil
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.Header().Set("Access-Control-Allow-Headers", "Range, Content-Type, Accept, Origin, WWW-Authenticate")
}

func remoteUserOf(r *http.Request) string {
	if user, _, ok := r.BasicAuth(); ok {
		return user
	}
	if user, ok := authchallenge.DigestUsername(r); ok {
		return user
	}
	return ""
}

// statusRecorder captures the status code written so the Log Formatter
// can include it even though http.ResponseWriter doesn't expose it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequest(r *http.Request, status int, remoteUser string) {
	if !s.logf.Enabled() {
		return
	}
	line := s.logf.Format(r, status, remoteUser)
	s.logger.Info(line)
}
