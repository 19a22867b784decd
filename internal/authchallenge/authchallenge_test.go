package authchallenge

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dufs-go/dufs/internal/accessctl"
)

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("")
	require.NoError(t, err)
	assert.Equal(t, Digest, s)

	s, err = ParseScheme("basic")
	require.NoError(t, err)
	assert.Equal(t, Basic, s)

	_, err = ParseScheme("ntlm")
	assert.Error(t, err)
}

func TestBasicAuthenticate(t *testing.T) {
	c := New(Basic)
	cred := accessctl.Credential{User: "alice", Pass: "hunter2"}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetBasicAuth("alice", "hunter2")
	assert.True(t, c.Authenticate(r, cred))

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.SetBasicAuth("alice", "wrong")
	assert.False(t, c.Authenticate(r2, cred))

	r3 := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, c.Authenticate(r3, cred))
}

func TestBasicChallenge(t *testing.T) {
	c := New(Basic)
	assert.Equal(t, `Basic realm="DUFS"`, c.Challenge(false))
}

func TestDigestChallengeContainsNonceAndQop(t *testing.T) {
	c := New(Digest)
	ch := c.Challenge(false)
	assert.Contains(t, ch, `realm="DUFS"`)
	assert.Contains(t, ch, `qop="auth"`)
	assert.Contains(t, ch, "nonce=")
	assert.NotContains(t, ch, "stale")

	stale := c.Challenge(true)
	assert.Contains(t, stale, "stale=true")
}

func TestDigestAuthenticateRoundTrip(t *testing.T) {
	c := New(Digest)
	cred := accessctl.Credential{User: "bob", Pass: "s3cret"}

	method, uri := http.MethodGet, "/a/b.txt"
	ha1 := md5Hex("bob:DUFS:s3cret")
	ha2 := md5Hex(method + ":" + uri)
	nonce, nc, cnonce, qop := "abc123", "00000001", "xyz789", "auth"
	response := md5Hex(ha1 + ":" + nonce + ":" + nc + ":" + cnonce + ":" + qop + ":" + ha2)

	header := `Digest username="bob", realm="DUFS", nonce="` + nonce +
		`", uri="` + uri + `", qop=` + qop + `, nc=` + nc +
		`, cnonce="` + cnonce + `", response="` + response + `"`

	r := httptest.NewRequest(method, uri, nil)
	r.Header.Set("Authorization", header)

	assert.True(t, c.Authenticate(r, cred))

	wrongCred := accessctl.Credential{User: "bob", Pass: "wrong"}
	assert.False(t, c.Authenticate(r, wrongCred))
}
