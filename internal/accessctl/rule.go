// Package accessctl implements the Access Controller: it matches an
// incoming (path, method, credentials) tuple against an ordered rule set
// and decides whether the request passes, passes read-only, or must be
// rejected back to the Auth Challenger for a 401.
package accessctl

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/dufs-go/dufs/internal/httperr"
)

// AnonymousUser is the wildcard username that denotes anonymous read
// access when it appears as a rule's credential user.
const AnonymousUser = "@"

// Permission is the permission-set granted by a matched rule.
type Permission int

const (
	ReadOnly Permission = iota
	ReadWrite
)

// Credential is one (username, password) pair a rule accepts.
type Credential struct {
	User string
	Pass string
}

// Rule is one parsed `-a/--auth` entry: a path glob, the credentials it
// accepts, and the permission granted to those credentials.
type Rule struct {
	PathGlob   string
	glob       glob.Glob
	prefixLen  int
	Credential Credential
	Permission Permission
}

// Anonymous reports whether this rule grants access to unauthenticated
// requests (its credential user is the "@" wildcard).
func (r Rule) Anonymous() bool { return r.Credential.User == AnonymousUser }

// ParseRule parses one `-a` flag value.
//
// Grammar: PATH "@" USER ":" PASS ["," PERM]
// PERM is "ro" (default) or "rw". USER may be the literal "@" to grant
// anonymous access, in which case PASS is ignored. Example:
//
//	/secret@alice:hunter2,rw
//	/public@@:,ro
func ParseRule(s string) (Rule, error) {
	at := strings.IndexByte(s, '@')
	if at < 0 {
		return Rule{}, httperr.NewConfigError("auth rule %q: missing '@' separating path from credentials", s)
	}
	path, rest := s[:at], s[at+1:]
	if path == "" {
		path = "/"
	}

	perm := ReadOnly
	if comma := strings.LastIndexByte(rest, ','); comma >= 0 {
		switch tail := rest[comma+1:]; tail {
		case "rw":
			perm = ReadWrite
			rest = rest[:comma]
		case "ro":
			perm = ReadOnly
			rest = rest[:comma]
		}
	}

	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return Rule{}, httperr.NewConfigError("auth rule %q: missing ':' separating user from password", s)
	}
	user, pass := rest[:colon], rest[colon+1:]
	if user == "" {
		return Rule{}, httperr.NewConfigError("auth rule %q: empty username", s)
	}

	g, err := glob.Compile(path, '/')
	if err != nil {
		return Rule{}, httperr.NewConfigError("auth rule %q: bad path glob: %w", s, err)
	}

	return Rule{
		PathGlob:   path,
		glob:       g,
		prefixLen:  literalPrefixLen(path),
		Credential: Credential{User: user, Pass: pass},
		Permission: perm,
	}, nil
}

// literalPrefixLen returns the length of the longest literal (glob-free)
// prefix of a path-glob pattern, used to rank rules whose globs both
// match a given request path: the rule with the longer literal prefix is
// considered more specific.
func literalPrefixLen(pattern string) int {
	if i := strings.IndexAny(pattern, "*?[{"); i >= 0 {
		return i
	}
	return len(pattern)
}
