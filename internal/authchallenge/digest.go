package authchallenge

import (
	"net/http"
	"strings"

	"github.com/dufs-go/dufs/internal/accessctl"
)

// digestParams are the fields of a parsed `Authorization: Digest ...`
// header needed to recompute the expected response.
type digestParams struct {
	username, realm, nonce, uri, nc, cnonce, qop, response string
}

func parseDigest(header string) (digestParams, bool) {
	const prefix = "Digest "
	if !strings.HasPrefix(header, prefix) {
		return digestParams{}, false
	}
	header = strings.TrimPrefix(header, prefix)

	fields := map[string]string{}
	for _, part := range splitDigestFields(header) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.Trim(strings.TrimSpace(kv[1]), `"`)
		fields[key] = val
	}

	p := digestParams{
		username: fields["username"],
		realm:    fields["realm"],
		nonce:    fields["nonce"],
		uri:      fields["uri"],
		nc:       fields["nc"],
		cnonce:   fields["cnonce"],
		qop:      fields["qop"],
		response: fields["response"],
	}
	if p.username == "" || p.nonce == "" || p.response == "" {
		return digestParams{}, false
	}
	return p, true
}

// splitDigestFields splits a comma-separated Digest header body, tolerant
// of commas embedded inside quoted field values.
func splitDigestFields(s string) []string {
	var fields []string
	var inQuotes bool
	start := 0
	for i, r := range s {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				fields = append(fields, s[start:i])
				start = i + 1
			}
		}
	}
	fields = append(fields, s[start:])
	return fields
}

// authenticateDigest recomputes the expected Digest response per RFC
// 7616's "auth" qop: HA1 = MD5(user:realm:pass), HA2 = MD5(method:uri),
// response = MD5(HA1:nonce:nc:cnonce:qop:HA2). The server never persisted
// the nonce it issued, so this only checks that the response was
// produced with *some* nonce/cnonce/nc the client supplied consistently
// together with cred's password — it cannot detect nonce replay, which
// the design explicitly accepts (clients simply get a fresh nonce on
// every challenge; staleness is never something the server can detect
// without state, so the dispatcher never sets stale=true).
func (c *Challenger) authenticateDigest(r *http.Request, cred accessctl.Credential) bool {
	p, ok := parseDigest(r.Header.Get("Authorization"))
	if !ok {
		return false
	}
	if !constantTimeEq(p.username, cred.User) {
		return false
	}

	ha1 := md5Hex(p.username + ":" + p.realm + ":" + cred.Pass)
	ha2 := md5Hex(r.Method + ":" + p.uri)

	qop := p.qop
	if qop == "" {
		qop = "auth"
	}
	expected := md5Hex(strings.Join([]string{ha1, p.nonce, p.nc, p.cnonce, qop, ha2}, ":"))

	return constantTimeEq(expected, p.response)
}

// DigestUsername returns the username carried in a request's Digest
// Authorization header, without verifying the response. It exists so
// the access log can attribute a request to its authenticated user
// under Digest auth the same way it already can via r.BasicAuth() —
// call it only after Authenticate has accepted the request.
func DigestUsername(r *http.Request) (string, bool) {
	p, ok := parseDigest(r.Header.Get("Authorization"))
	if !ok {
		return "", false
	}
	return p.username, true
}
