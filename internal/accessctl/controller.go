package accessctl

import (
	"net/http"
	"sort"
	"strings"
)

// Authenticator validates the credentials a request carries, per its
// scheme (Basic or Digest), against one candidate Credential. The Access
// Controller never inspects the Authorization header itself — Basic
// decodes straight to a (user, pass) pair it can compare, but Digest
// never transmits the password at all, so verification must happen
// scheme-side.
type Authenticator interface {
	Authenticate(r *http.Request, cred Credential) bool
}

// Decision is the outcome of a guard() call.
type Decision int

const (
	// Reject forces the caller to invoke the Auth Challenger and emit a
	// 401.
	Reject Decision = iota
	// ReadOnly permits GET/HEAD/OPTIONS/PROPFIND only.
	ReadOnly
	// Pass permits all methods.
	Pass
)

// readOnlyMethods is the set of methods ReadOnly permits.
var readOnlyMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	"PROPFIND":         true,
}

// Controller holds the ordered rule set parsed from `-a/--auth` flags and
// the Authenticator for the configured scheme.
type Controller struct {
	rules []Rule
	auth  Authenticator
}

// New builds a Controller from already-parsed rules and an Authenticator.
// An empty rule set means every request passes unauthenticated, matching
// the "no -a flags" default. auth may be nil only if rules is empty.
func New(rules []Rule, auth Authenticator) *Controller {
	return &Controller{rules: rules, auth: auth}
}

// matchGroup returns every rule matching path whose glob's literal prefix
// is the longest among matches, per "longest matching prefix wins".
func (c *Controller) matchGroup(path string) []Rule {
	best := -1
	var group []Rule
	for _, r := range c.rules {
		if !covers(r, path) {
			continue
		}
		switch {
		case r.prefixLen > best:
			best = r.prefixLen
			group = []Rule{r}
		case r.prefixLen == best:
			group = append(group, r)
		}
	}
	// Most-specific permission wins within the tied group: ReadWrite
	// rules are considered before ReadOnly ones when checking
	// credentials, so a user granted rw via one rule and ro via
	// another at the same prefix gets rw.
	sort.SliceStable(group, func(i, j int) bool {
		return group[i].Permission > group[j].Permission
	})
	return group
}

// covers reports whether r's glob matches path itself or one of path's
// ancestor directories, so a rule for /a also governs /a/b/c.
func covers(r Rule, path string) bool {
	for p := path; p != ""; {
		if r.glob.Match(p) {
			return true
		}
		if p == "/" {
			return false
		}
		p = p[:strings.LastIndexByte(p, '/')+1]
		if len(p) > 1 {
			p = strings.TrimSuffix(p, "/")
		}
	}
	return false
}

// Guard is the Access Controller's sole entry point: given the resolved
// path and the incoming request, it decides whether the request passes.
// When a rule in the longest-prefix group permits anonymous access and
// the method is read-only, credentials are never inspected.
func (c *Controller) Guard(r *http.Request, path string) Decision {
	group := c.matchGroup(path)
	if len(group) == 0 {
		// No rule at all covers this path: the unauthenticated default
		// is full access, matching dufs's "no -a flags means open".
		return Pass
	}

	readOnly := readOnlyMethods[r.Method]

	for _, rule := range group {
		if rule.Anonymous() {
			if rule.Permission == ReadWrite {
				return Pass
			}
			if readOnly {
				return ReadOnly
			}
			continue
		}

		if c.auth != nil && c.auth.Authenticate(r, rule.Credential) {
			if rule.Permission == ReadWrite {
				return Pass
			}
			return ReadOnly
		}
	}

	return Reject
}
