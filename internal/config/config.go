// Package config holds the server's immutable configuration, built once
// from CLI flags at startup and shared by reference with every handler.
// There is no reload path: the spec's configuration model is static for
// the lifetime of the process, unlike the teacher's live-reloadable
// manager this package replaces.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dufs-go/dufs/internal/accessctl"
	"github.com/dufs-go/dufs/internal/authchallenge"
	"github.com/dufs-go/dufs/internal/httperr"
	"github.com/dufs-go/dufs/internal/pathutil"
)

// BindAddr is one resolved --bind entry: either a TCP address (joined
// with --port) or, on unix, a filesystem path to a unix socket.
type BindAddr struct {
	Network string // "tcp" or "unix"
	Address string
}

// Config is the complete, immutable server configuration.
type Config struct {
	Root           string
	PathPrefix     string
	Hidden         []string
	Rules          []accessctl.Rule
	AuthScheme     authchallenge.Scheme
	AllowUpload    bool
	AllowDelete    bool
	AllowSearch    bool
	AllowSymlink   bool
	EnableCORS     bool
	RenderIndex    bool
	RenderTryIndex bool
	RenderSPA      bool
	AssetsDir      string
	LogFormat      string

	BindAddrs []BindAddr
	Port      uint16

	TLSCert string
	TLSKey  string
}

// ApplyAllowAll turns on every capability toggle, implementing -A.
func (c *Config) ApplyAllowAll() {
	c.AllowUpload = true
	c.AllowDelete = true
	c.AllowSearch = true
	c.AllowSymlink = true
}

// ParseHidden splits a comma-separated --hidden value.
func ParseHidden(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseRules parses every --auth flag value, in order, since rule order
// determines longest-prefix/permission resolution.
func ParseRules(raw []string) ([]accessctl.Rule, error) {
	rules := make([]accessctl.Rule, 0, len(raw))
	for _, s := range raw {
		r, err := accessctl.ParseRule(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// ParseBindAddrs resolves --bind values: anything that parses as an IP
// literal (v4 or v6, including "0.0.0.0" and "::") becomes a TCP bind
// address on --port; anything else is treated as a unix-socket path.
func ParseBindAddrs(raw []string, port uint16) ([]BindAddr, error) {
	if len(raw) == 0 {
		raw = []string{"0.0.0.0", "::"}
	}

	out := make([]BindAddr, 0, len(raw))
	for _, addr := range raw {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if net.ParseIP(addr) != nil {
			host := addr
			if strings.Contains(host, ":") {
				host = "[" + host + "]"
			}
			out = append(out, BindAddr{Network: "tcp", Address: host + ":" + strconv.Itoa(int(port))})
			continue
		}
		out = append(out, BindAddr{Network: "unix", Address: addr})
	}
	return out, nil
}

// ValidateRoot checks that root can be stat'd and returns its absolute
// path. A missing or inaccessible root is a ConfigError (exit 1).
func ValidateRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", httperr.NewConfigError("resolve root %q: %w", root, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", httperr.NewConfigError("root %q: %w", root, err)
	}
	return abs, nil
}

// ValidateAssets checks that an --assets override directory, if given,
// contains index.html as the spec requires.
func ValidateAssets(dir string) error {
	if dir == "" {
		return nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return httperr.NewConfigError("resolve assets dir %q: %w", dir, err)
	}
	if _, err := os.Stat(filepath.Join(abs, "index.html")); err != nil {
		return httperr.NewConfigError("assets dir %q must contain index.html: %w", dir, err)
	}
	return nil
}

// ValidateLogFile checks that a configured --log-file's directory exists
// and is writable, catching a doomed-to-fail rotation setup at startup
// rather than on the first dropped log line.
func ValidateLogFile(path string) error {
	if err := pathutil.CheckFileDirectoryWritable(path, "access log"); err != nil {
		return httperr.NewConfigError("%w", err)
	}
	return nil
}

// ValidateUploadRoot checks that root is writable when uploads are
// enabled, since an --allow-upload server with a read-only root would
// otherwise only discover the problem on the first PUT.
func ValidateUploadRoot(root string, allowUpload bool) error {
	if !allowUpload {
		return nil
	}
	if err := pathutil.CheckDirectoryWritable(root); err != nil {
		return httperr.NewConfigError("%w", err)
	}
	return nil
}
