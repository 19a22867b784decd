// Package authchallenge implements the Auth Challenger: it issues Basic
// and Digest WWW-Authenticate challenges and validates the credentials a
// request carries against one candidate (user, pass) pair. It never
// persists issued nonces; see authenticateDigest for why that is safe.
package authchallenge

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/dufs-go/dufs/internal/accessctl"
)

// Scheme selects the challenge/response mechanism.
type Scheme int

const (
	Digest Scheme = iota
	Basic
)

// ParseScheme parses the --auth-method flag value.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(s) {
	case "", "digest":
		return Digest, nil
	case "basic":
		return Basic, nil
	default:
		return 0, fmt.Errorf("unknown auth method %q: want basic or digest", s)
	}
}

// Realm is fixed, matching the upstream server's challenge string.
const Realm = "DUFS"

// Challenger issues challenges and validates credentials for the
// configured Scheme. It implements accessctl.Authenticator.
type Challenger struct {
	Scheme Scheme
}

// New builds a Challenger for the given scheme.
func New(scheme Scheme) *Challenger {
	return &Challenger{Scheme: scheme}
}

// Challenge returns the WWW-Authenticate header value for the configured
// scheme. stale is set on Digest re-challenges of a principal whose
// previous response no longer verifies, signaling the client to simply
// retry with a fresh nonce rather than re-prompting for a password.
func (c *Challenger) Challenge(stale bool) string {
	switch c.Scheme {
	case Basic:
		return fmt.Sprintf(`Basic realm=%q`, Realm)
	default:
		nonce, err := freshNonce()
		if err != nil {
			nonce = fallbackNonce()
		}
		if stale {
			return fmt.Sprintf(`Digest realm=%q, nonce=%q, qop="auth", stale=true`, Realm, nonce)
		}
		return fmt.Sprintf(`Digest realm=%q, nonce=%q, qop="auth"`, Realm, nonce)
	}
}

// Authenticate reports whether r carries a valid Basic or Digest response
// for cred, implementing accessctl.Authenticator.
func (c *Challenger) Authenticate(r *http.Request, cred accessctl.Credential) bool {
	switch c.Scheme {
	case Basic:
		return c.authenticateBasic(r, cred)
	default:
		return c.authenticateDigest(r, cred)
	}
}

func (c *Challenger) authenticateBasic(r *http.Request, cred accessctl.Credential) bool {
	user, pass, ok := parseBasic(r.Header.Get("Authorization"))
	if !ok {
		return false
	}
	return constantTimeEq(user, cred.User) && constantTimeEq(pass, cred.Pass)
}

func parseBasic(header string) (user, pass string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return "", "", false
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func constantTimeEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func freshNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// fallbackNonce is used only if crypto/rand is somehow exhausted; it is
// not security-critical since nonces are never persisted or checked for
// freshness in this implementation (see authenticateDigest).
func fallbackNonce() string {
	return hex.EncodeToString(md5.New().Sum([]byte(Realm)))
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
