// Package webdav implements the WebDAV Responder: the fixed-property
// subset of RFC 4918 the spec calls for (PROPFIND/PROPPATCH/MKCOL/COPY/
// MOVE/LOCK/UNLOCK/OPTIONS), hand-rolled rather than built on a generic
// WebDAV library because every response body is a small, fixed XML
// envelope and locking is simulated with no persisted state.
package webdav

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry describes one resource to render as a <D:response> element.
type Entry struct {
	// Href is the resource's URL path, already including any configured
	// path prefix.
	Href         string
	IsCollection bool
	Size         int64 // ignored for collections
	ModTime      time.Time
}

const xmlProlog = `<?xml version="1.0" encoding="utf-8"?>` + "\n"

// WriteMultiStatus renders the 207 Multi-Status envelope for PROPFIND.
func WriteMultiStatus(w http.ResponseWriter, entries []Entry) error {
	var buf bytes.Buffer
	buf.WriteString(xmlProlog)
	buf.WriteString(`<D:multistatus xmlns:D="DAV:">` + "\n")

	for _, e := range entries {
		buf.WriteString(`  <D:response>` + "\n")
		fmt.Fprintf(&buf, "    <D:href>%s</D:href>\n", escapeHref(e.Href))
		buf.WriteString(`    <D:propstat>` + "\n")
		buf.WriteString(`      <D:prop>` + "\n")
		if e.IsCollection {
			buf.WriteString(`        <D:resourcetype><D:collection/></D:resourcetype>` + "\n")
		} else {
			buf.WriteString(`        <D:resourcetype/>` + "\n")
			fmt.Fprintf(&buf, "        <D:getcontentlength>%d</D:getcontentlength>\n", e.Size)
		}
		fmt.Fprintf(&buf, "        <D:getlastmodified>%s</D:getlastmodified>\n", escapeText(e.ModTime.UTC().Format(http.TimeFormat)))
		buf.WriteString(`      </D:prop>` + "\n")
		buf.WriteString(`      <D:status>HTTP/1.1 200 OK</D:status>` + "\n")
		buf.WriteString(`    </D:propstat>` + "\n")
		buf.WriteString(`  </D:response>` + "\n")
	}

	buf.WriteString(`</D:multistatus>` + "\n")

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_, err := w.Write(buf.Bytes())
	return err
}

// WritePropPatchForbidden renders the 207 envelope PROPPATCH always
// returns: every proposed property change is denied, since the server
// never persists custom properties.
func WritePropPatchForbidden(w http.ResponseWriter, href string, propNames []string) error {
	var buf bytes.Buffer
	buf.WriteString(xmlProlog)
	buf.WriteString(`<D:multistatus xmlns:D="DAV:">` + "\n")
	buf.WriteString(`  <D:response>` + "\n")
	fmt.Fprintf(&buf, "    <D:href>%s</D:href>\n", escapeHref(href))
	buf.WriteString(`    <D:propstat>` + "\n")
	buf.WriteString(`      <D:prop>` + "\n")
	for _, name := range propNames {
		fmt.Fprintf(&buf, "        <D:%s/>\n", escapeText(name))
	}
	buf.WriteString(`      </D:prop>` + "\n")
	buf.WriteString(`      <D:status>HTTP/1.1 403 Forbidden</D:status>` + "\n")
	buf.WriteString(`    </D:propstat>` + "\n")
	buf.WriteString(`  </D:response>` + "\n")
	buf.WriteString(`</D:multistatus>` + "\n")

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_, err := w.Write(buf.Bytes())
	return err
}

// NewLockToken synthesizes an ephemeral lock token: an opaquelocktoken
// wrapping a fresh UUIDv4 for authenticated callers, or a decimal
// timestamp for anonymous ones. No state is recorded anywhere.
func NewLockToken(authenticated bool) string {
	if authenticated {
		return "opaquelocktoken:" + uuid.NewString()
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// WriteLockResponse renders the synthesized <D:prop> lock envelope and
// sets the Lock-Token header.
func WriteLockResponse(w http.ResponseWriter, href, token string) error {
	w.Header().Set("Lock-Token", "<"+token+">")
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")

	var buf bytes.Buffer
	buf.WriteString(xmlProlog)
	buf.WriteString(`<D:prop xmlns:D="DAV:">` + "\n")
	buf.WriteString(`  <D:lockdiscovery>` + "\n")
	buf.WriteString(`    <D:activelock>` + "\n")
	buf.WriteString(`      <D:locktype><D:write/></D:locktype>` + "\n")
	buf.WriteString(`      <D:lockscope><D:exclusive/></D:lockscope>` + "\n")
	buf.WriteString(`      <D:depth>0</D:depth>` + "\n")
	fmt.Fprintf(&buf, "      <D:owner>%s</D:owner>\n", escapeHref(href))
	buf.WriteString(`      <D:timeout>Second-600</D:timeout>` + "\n")
	fmt.Fprintf(&buf, "      <D:locktoken><D:href>%s</D:href></D:locktoken>\n", escapeText(token))
	buf.WriteString(`    </D:activelock>` + "\n")
	buf.WriteString(`  </D:lockdiscovery>` + "\n")
	buf.WriteString(`</D:prop>` + "\n")

	w.WriteHeader(http.StatusOK)
	_, err := w.Write(buf.Bytes())
	return err
}

// ParseDepth interprets the Depth header: absent, "0", or "1" behave as
// RFC 4918 specifies, but "infinity" (and any other non-numeric value)
// is bounded to 1 rather than walking the whole subtree — self plus
// immediate children only, never recursive descent. A successfully
// parsed negative integer is a different case from "infinity" and is
// rejected outright, since nothing calls for treating it as anything
// valid.
func ParseDepth(header string) (int, error) {
	if header == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil {
		return 1, nil
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid Depth header %q", header)
	}
	return n, nil
}

// AllowHeader is the fixed Allow list for OPTIONS.
const AllowHeader = "GET,HEAD,PUT,OPTIONS,DELETE,PROPFIND,COPY,MOVE"

// DAVHeader is the fixed DAV compliance class header.
const DAVHeader = "1,2"

func escapeHref(path string) string {
	u := &url.URL{Path: path}
	return escapeText(u.EscapedPath())
}

func escapeText(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&apos;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
