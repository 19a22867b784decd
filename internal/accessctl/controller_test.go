package accessctl

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRule(t *testing.T, s string) Rule {
	t.Helper()
	r, err := ParseRule(s)
	require.NoError(t, err)
	return r
}

// basicTestAuth is a minimal Authenticator standing in for the real
// Basic/Digest challenger, so these tests exercise Guard's rule-matching
// logic independent of any wire format.
type basicTestAuth struct{}

func (basicTestAuth) Authenticate(r *http.Request, cred Credential) bool {
	u, p, ok := r.BasicAuth()
	return ok && u == cred.User && p == cred.Pass
}

func req(method string, user, pass string) *http.Request {
	r := httptest.NewRequest(method, "/", nil)
	if user != "" {
		r.SetBasicAuth(user, pass)
	}
	return r
}

func TestParseRule(t *testing.T) {
	r := mustRule(t, "/secret@alice:hunter2,rw")
	assert.Equal(t, "/secret", r.PathGlob)
	assert.Equal(t, "alice", r.Credential.User)
	assert.Equal(t, "hunter2", r.Credential.Pass)
	assert.Equal(t, ReadWrite, r.Permission)

	anon := mustRule(t, "/public@@:,ro")
	assert.True(t, anon.Anonymous())
	assert.Equal(t, ReadOnly, anon.Permission)

	_, err := ParseRule("no-at-sign")
	assert.Error(t, err)

	_, err = ParseRule("/path@nopasswordsep")
	assert.Error(t, err)
}

func TestGuardNoRules(t *testing.T) {
	c := New(nil, nil)
	assert.Equal(t, Pass, c.Guard(req(http.MethodGet, "", ""), "/anything"))
}

func TestGuardAnonymousReadOnly(t *testing.T) {
	c := New([]Rule{mustRule(t, "/pub@@:,ro")}, basicTestAuth{})

	assert.Equal(t, ReadOnly, c.Guard(req(http.MethodGet, "", ""), "/pub/file.txt"))
	assert.Equal(t, Reject, c.Guard(req(http.MethodPut, "", ""), "/pub/file.txt"))
}

func TestGuardCredentialedReadWrite(t *testing.T) {
	c := New([]Rule{mustRule(t, "/priv@bob:secret,rw")}, basicTestAuth{})

	assert.Equal(t, Reject, c.Guard(req(http.MethodGet, "", ""), "/priv/x"))
	assert.Equal(t, Reject, c.Guard(req(http.MethodGet, "bob", "wrong"), "/priv/x"))
	assert.Equal(t, Pass, c.Guard(req(http.MethodPut, "bob", "secret"), "/priv/x"))
}

func TestGuardLongestPrefixWins(t *testing.T) {
	c := New([]Rule{
		mustRule(t, "/@alice:pw,ro"),
		mustRule(t, "/open@@:,ro"),
	}, basicTestAuth{})

	// /open is the more specific (longer literal prefix) match and
	// grants anonymous read.
	assert.Equal(t, ReadOnly, c.Guard(req(http.MethodGet, "", ""), "/open/file"))
	// Outside /open, only the root rule applies and requires auth.
	assert.Equal(t, Reject, c.Guard(req(http.MethodGet, "", ""), "/elsewhere"))
}

func TestGuardMostSpecificPermissionWinsAtEqualPrefix(t *testing.T) {
	c := New([]Rule{
		mustRule(t, "/x@alice:pw,ro"),
		mustRule(t, "/x@alice:pw,rw"),
	}, basicTestAuth{})
	assert.Equal(t, Pass, c.Guard(req(http.MethodPut, "alice", "pw"), "/x/f"))
}
