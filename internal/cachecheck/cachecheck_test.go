package cachecheck

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestETagDerivedFromMtimeAndSize(t *testing.T) {
	mt := time.UnixMilli(1700000000123)
	assert.Equal(t, `"1700000000123-5"`, ETag(mt, 5))
}

func TestNotModifiedIfNoneMatch(t *testing.T) {
	mt := time.UnixMilli(1700000000000)
	etag := ETag(mt, 5)

	r := httptest.NewRequest(http.MethodGet, "/f", nil)
	r.Header.Set("If-None-Match", etag)
	assert.True(t, NotModified(r, etag, mt))

	r2 := httptest.NewRequest(http.MethodGet, "/f", nil)
	r2.Header.Set("If-None-Match", "*")
	assert.True(t, NotModified(r2, etag, mt))

	r3 := httptest.NewRequest(http.MethodGet, "/f", nil)
	r3.Header.Set("If-None-Match", `"other"`)
	assert.False(t, NotModified(r3, etag, mt))
}

func TestNotModifiedIfModifiedSinceFallback(t *testing.T) {
	mt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	etag := ETag(mt, 5)

	r := httptest.NewRequest(http.MethodGet, "/f", nil)
	r.Header.Set("If-Modified-Since", mt.Format(http.TimeFormat))
	assert.True(t, NotModified(r, etag, mt))

	r2 := httptest.NewRequest(http.MethodGet, "/f", nil)
	r2.Header.Set("If-Modified-Since", mt.Add(-time.Hour).Format(http.TimeFormat))
	assert.False(t, NotModified(r2, etag, mt))
}

func TestRangeHonoredWithCurrentIfRange(t *testing.T) {
	mt := time.UnixMilli(1700000000000)
	etag := ETag(mt, 5)

	r := httptest.NewRequest(http.MethodGet, "/f", nil)
	r.Header.Set("If-Range", etag)
	assert.True(t, RangeHonored(r, etag, mt))

	r2 := httptest.NewRequest(http.MethodGet, "/f", nil)
	r2.Header.Set("If-Range", `"stale-tag"`)
	assert.False(t, RangeHonored(r2, etag, mt))
}

func TestRangeHonoredWithoutIfRange(t *testing.T) {
	mt := time.Now()
	r := httptest.NewRequest(http.MethodGet, "/f", nil)
	assert.True(t, RangeHonored(r, ETag(mt, 1), mt))
}
