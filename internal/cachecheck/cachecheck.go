// Package cachecheck implements half of the Range Parser & Cache
// Evaluator component: computing the strong ETag and evaluating
// If-None-Match, If-Modified-Since and If-Range against it. Range header
// parsing itself lives in chunkio, since it is shared with the streaming
// copy logic.
package cachecheck

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ETag computes the strong validator for a resource, derived solely from
// its millisecond-truncated mtime and size as the data model requires.
func ETag(mtime time.Time, size int64) string {
	return fmt.Sprintf(`"%d-%d"`, mtime.UnixMilli(), size)
}

// NotModified evaluates If-None-Match first and, only if absent, falls
// back to If-Modified-Since against the mtime truncated to the second
// (the granularity of HTTP-date). A positive match means the caller
// should respond 304 with no body, echoing the validators.
func NotModified(r *http.Request, etag string, mtime time.Time) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		return matchesAny(inm, etag)
	}

	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		t, err := http.ParseTime(ims)
		if err != nil {
			return false
		}
		return !mtime.Truncate(time.Second).After(t)
	}

	return false
}

// matchesAny reports whether header (a comma-separated If-None-Match
// value, possibly "*") matches etag.
func matchesAny(header, etag string) bool {
	if strings.TrimSpace(header) == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimSpace(candidate) == etag {
			return true
		}
	}
	return false
}

// RangeHonored evaluates If-Range: when present, the Range header is only
// honored if the supplied validator (an ETag or an HTTP-date) is still
// current; otherwise the full representation is sent instead.
func RangeHonored(r *http.Request, etag string, mtime time.Time) bool {
	ifRange := r.Header.Get("If-Range")
	if ifRange == "" {
		return true
	}

	if strings.HasPrefix(ifRange, `"`) || strings.HasPrefix(ifRange, "W/") {
		return ifRange == etag
	}

	t, err := http.ParseTime(ifRange)
	if err != nil {
		return false
	}
	return !mtime.Truncate(time.Second).After(t)
}
