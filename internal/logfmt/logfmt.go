// Package logfmt implements the Log Formatter: it expands a user-defined
// template with `$`-prefixed placeholders into one access-log line per
// completed request. This is deliberately separate from the ambient
// structured application logging in internal/slogutil — it is an output
// format a user configures with --log-format, not a diagnostics stream.
package logfmt

import (
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// DefaultTemplate matches the CLI's default --log-format value.
const DefaultTemplate = `$remote_addr "$request" - $status`

var tokenPattern = regexp.MustCompile(`\$(http_[a-zA-Z0-9_]+|[a-zA-Z_]+)`)

// Formatter expands Template against one completed request.
type Formatter struct {
	Template string
}

// New builds a Formatter. An empty template disables logging entirely;
// callers should check Enabled before calling Format.
func New(template string) *Formatter {
	return &Formatter{Template: template}
}

// Enabled reports whether a non-empty template was configured.
func (f *Formatter) Enabled() bool {
	return f != nil && f.Template != ""
}

// Format expands f.Template for one completed request. remoteUser is the
// authenticated principal, or "" if the request was anonymous or
// unauthenticated.
func (f *Formatter) Format(r *http.Request, status int, remoteUser string) string {
	return tokenPattern.ReplaceAllStringFunc(f.Template, func(tok string) string {
		name := tok[1:]
		switch {
		case name == "remote_addr":
			return remoteAddr(r)
		case name == "remote_user":
			return remoteUser
		case name == "request":
			return r.Method + " " + r.RequestURI + " " + r.Proto
		case name == "status":
			return strconv.Itoa(status)
		case strings.HasPrefix(name, "http_"):
			header := strings.ReplaceAll(strings.TrimPrefix(name, "http_"), "_", "-")
			return r.Header.Get(header)
		default:
			return tok
		}
	})
}

func remoteAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
