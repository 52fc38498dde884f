package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"mediastream/internal/domain"
)

type mapResolver struct {
	locations map[domain.Handle]domain.ResolvedLocation
}

func (r *mapResolver) Resolve(_ context.Context, handle domain.Handle) (domain.ResolvedLocation, error) {
	loc, ok := r.locations[handle]
	if !ok {
		return domain.ResolvedLocation{}, domain.ErrNotFound
	}
	return loc, nil
}

type fixedGetAsset struct {
	asset domain.Asset
	err   error
}

func (g fixedGetAsset) Execute(_ context.Context, _ domain.AssetID) (domain.Asset, error) {
	return g.asset, g.err
}

// newBlobUpstream serves content with proper single-range support, the way
// the blob host does.
func newBlobUpstream(t *testing.T, content []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, end, err := parseByteRange(r.Header.Get("Range"), int64(len(content)))
		if err != nil {
			w.Header().Set("Content-Type", "video/mp4")
			w.Write(content)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(content)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(content[start : end+1])
	}))
}

func blobContent(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte('a' + i%26)
	}
	return buf
}

func newStreamServer(t *testing.T, upstreamURL string, size int64) *Server {
	t.Helper()
	res := &mapResolver{locations: map[domain.Handle]domain.ResolvedLocation{
		"h1": {URL: upstreamURL, SizeBytes: size, ResolvedAt: time.Now()},
	}}
	s := NewServer(fixedGetAsset{err: domain.ErrNotFound}, WithResolver(res))
	t.Cleanup(s.Close)
	return s
}

func TestStreamFullFile(t *testing.T) {
	content := blobContent(100)
	upstream := newBlobUpstream(t, content)
	defer upstream.Close()
	s := newStreamServer(t, upstream.URL, 100)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/h1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Fatalf("body mismatch: got %d bytes", rec.Body.Len())
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Fatalf("Accept-Ranges = %q", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "100" {
		t.Fatalf("Content-Length = %q", got)
	}
	if rec.Header().Get("ETag") == "" {
		t.Fatalf("missing ETag")
	}
}

func TestStreamPartialRange(t *testing.T) {
	content := blobContent(100)
	upstream := newBlobUpstream(t, content)
	defer upstream.Close()
	s := newStreamServer(t, upstream.URL, 100)

	req := httptest.NewRequest(http.MethodGet, "/stream/h1", nil)
	req.Header.Set("Range", "bytes=10-19")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 10-19/100" {
		t.Fatalf("Content-Range = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), content[10:20]) {
		t.Fatalf("body mismatch: %q", rec.Body.String())
	}
}

func TestStreamMalformedRangeFallsBackToFullFile(t *testing.T) {
	content := blobContent(50)
	upstream := newBlobUpstream(t, content)
	defer upstream.Close()
	s := newStreamServer(t, upstream.URL, 50)

	req := httptest.NewRequest(http.MethodGet, "/stream/h1", nil)
	req.Header.Set("Range", "bytes=banana")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 50 {
		t.Fatalf("expected full file, got %d bytes", rec.Body.Len())
	}
}

func TestStreamRangeBeyondEnd(t *testing.T) {
	content := blobContent(50)
	upstream := newBlobUpstream(t, content)
	defer upstream.Close()
	s := newStreamServer(t, upstream.URL, 50)

	req := httptest.NewRequest(http.MethodGet, "/stream/h1", nil)
	req.Header.Set("Range", "bytes=500-")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status %d, want 416", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */50" {
		t.Fatalf("Content-Range = %q", got)
	}
}

// newSizelessUpstream serves the whole blob on every request and records
// the Range header it received, mimicking a host that reports no size.
func newSizelessUpstream(t *testing.T, content []byte, gotRange *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotRange = r.Header.Get("Range")
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(content)
	}))
}

func TestStreamUnknownSizeStreamsFullBody(t *testing.T) {
	content := blobContent(4096)
	var gotRange string
	upstream := newSizelessUpstream(t, content, &gotRange)
	defer upstream.Close()
	s := newStreamServer(t, upstream.URL, 0)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/h1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Fatalf("body mismatch: got %d bytes, want %d", rec.Body.Len(), len(content))
	}
	if got := rec.Header().Get("Content-Length"); got != "" {
		t.Fatalf("Content-Length must be omitted when the size is unknown, got %q", got)
	}
	if gotRange != "" {
		t.Fatalf("upstream must not receive a Range header, got %q", gotRange)
	}
}

func TestStreamUnknownSizeIgnoresRange(t *testing.T) {
	content := blobContent(4096)
	var gotRange string
	upstream := newSizelessUpstream(t, content, &gotRange)
	defer upstream.Close()
	s := newStreamServer(t, upstream.URL, 0)

	req := httptest.NewRequest(http.MethodGet, "/stream/h1", nil)
	req.Header.Set("Range", "bytes=0-99")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	// Without a known size no range can be satisfied; the request gets
	// the full body instead of a 416.
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Fatalf("body mismatch: got %d bytes, want %d", rec.Body.Len(), len(content))
	}
	if got := rec.Header().Get("Content-Range"); got != "" {
		t.Fatalf("unexpected Content-Range %q", got)
	}
	if gotRange != "" {
		t.Fatalf("upstream must not receive a Range header, got %q", gotRange)
	}
}

func TestStreamNotModified(t *testing.T) {
	upstream := newBlobUpstream(t, blobContent(50))
	defer upstream.Close()
	s := newStreamServer(t, upstream.URL, 50)

	// First request reports the validator.
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/h1", nil))
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag on first response")
	}

	req := httptest.NewRequest(http.MethodGet, "/stream/h1", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Fatalf("status %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("304 must have no body, got %d bytes", rec.Body.Len())
	}
}

func TestStreamHead(t *testing.T) {
	content := blobContent(80)
	upstream := newBlobUpstream(t, content)
	defer upstream.Close()
	s := newStreamServer(t, upstream.URL, 80)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/stream/h1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("HEAD must have no body, got %d bytes", rec.Body.Len())
	}
	if got, _ := strconv.Atoi(rec.Header().Get("Content-Length")); got != 80 {
		t.Fatalf("Content-Length = %d, want 80", got)
	}
}

func TestStreamSlowClientHint(t *testing.T) {
	content := blobContent(200 * 1024)
	upstream := newBlobUpstream(t, content)
	defer upstream.Close()
	s := newStreamServer(t, upstream.URL, int64(len(content)))

	req := httptest.NewRequest(http.MethodGet, "/stream/h1", nil)
	req.Header.Set("ECT", "slow-2g")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Fatalf("body mismatch under small chunk size")
	}
}

func TestStreamUnknownHandle(t *testing.T) {
	upstream := newBlobUpstream(t, blobContent(10))
	defer upstream.Close()
	s := newStreamServer(t, upstream.URL, 10)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("bad error body: %v", err)
	}
	if env.Error.Code != "not_found" {
		t.Fatalf("code %q, want not_found", env.Error.Code)
	}
}

func TestStreamUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()
	s := newStreamServer(t, upstream.URL, 50)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/h1", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
}
