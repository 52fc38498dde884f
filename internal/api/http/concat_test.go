package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mediastream/internal/domain"
)

type fakeConcat struct {
	payload []byte
	err     error
	// when errAfterWrite is set, payload is written before the error fires
	errAfterWrite bool
	calls         int
}

func (c *fakeConcat) Execute(_ context.Context, _ domain.Asset, w io.Writer) error {
	c.calls++
	if c.err != nil && !c.errAfterWrite {
		return c.err
	}
	if _, err := w.Write(c.payload); err != nil {
		return err
	}
	return c.err
}

func newConcatServer(t *testing.T, asset domain.Asset, getErr error, concat *fakeConcat) *Server {
	t.Helper()
	s := NewServer(fixedGetAsset{asset: asset, err: getErr}, WithConcatAsset(concat))
	t.Cleanup(s.Close)
	return s
}

func TestConcatStreamsAsset(t *testing.T) {
	asset := domain.Asset{ID: "a1", Title: "My Movie"}
	concat := &fakeConcat{payload: []byte("mp4-bytes")}
	s := newConcatServer(t, asset, nil, concat)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/concat/a1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if rec.Body.String() != "mp4-bytes" {
		t.Fatalf("body %q", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, `filename="My Movie.mp4"`) {
		t.Fatalf("Content-Disposition = %q", got)
	}
}

func TestConcatAssetNotFound(t *testing.T) {
	s := newConcatServer(t, domain.Asset{}, domain.ErrNotFound, &fakeConcat{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/concat/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestConcatErrorBeforeFirstByte(t *testing.T) {
	asset := domain.Asset{ID: "a1"}
	concat := &fakeConcat{err: domain.ErrNoParts}
	s := newConcatServer(t, asset, nil, concat)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/concat/a1", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("bad error body: %v", err)
	}
	if env.Error.Code != "no_parts" {
		t.Fatalf("code %q, want no_parts", env.Error.Code)
	}
}

func TestConcatErrorMidStreamKeepsSentBytes(t *testing.T) {
	asset := domain.Asset{ID: "a1"}
	concat := &fakeConcat{payload: []byte("partial"), err: errors.New("pipe broke"), errAfterWrite: true}
	s := newConcatServer(t, asset, nil, concat)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/concat/a1", nil))

	// The stream already started, so the status stays 200 and the body holds
	// whatever made it out before the failure.
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	if rec.Body.String() != "partial" {
		t.Fatalf("body %q", rec.Body.String())
	}
}

func TestConcatSinglePartDelegatesToRangeProxy(t *testing.T) {
	content := blobContent(40)
	upstream := newBlobUpstream(t, content)
	defer upstream.Close()

	asset := domain.Asset{
		ID:            "a1",
		PrimaryHandle: "p1",
		Parts:         []domain.Part{{Index: 1, Handle: "p1"}},
	}
	res := &mapResolver{locations: map[domain.Handle]domain.ResolvedLocation{
		"p1": {URL: upstream.URL, SizeBytes: 40, ResolvedAt: time.Now()},
	}}
	concat := &fakeConcat{payload: []byte("remuxed")}
	s := NewServer(fixedGetAsset{asset: asset}, WithConcatAsset(concat), WithResolver(res))
	t.Cleanup(s.Close)

	req := httptest.NewRequest(http.MethodGet, "/stream/concat/a1", nil)
	req.Header.Set("Range", "bytes=0-9")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status %d, want 206", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), content[:10]) {
		t.Fatalf("body %q", rec.Body.String())
	}
	if concat.calls != 0 {
		t.Fatalf("single-part asset must bypass the remux, got %d concat calls", concat.calls)
	}
}

func TestSoleHandle(t *testing.T) {
	cases := []struct {
		name   string
		asset  domain.Asset
		handle domain.Handle
		ok     bool
	}{
		{"one part", domain.Asset{Parts: []domain.Part{{Index: 1, Handle: "p1"}}}, "p1", true},
		{"primary only", domain.Asset{PrimaryHandle: "p1"}, "p1", true},
		{"two parts", domain.Asset{Parts: []domain.Part{{Index: 1, Handle: "p1"}, {Index: 2, Handle: "p2"}}}, "", false},
		{"nothing", domain.Asset{}, "", false},
	}
	for _, tc := range cases {
		handle, ok := soleHandle(tc.asset)
		if handle != tc.handle || ok != tc.ok {
			t.Fatalf("%s: soleHandle = (%q, %v), want (%q, %v)", tc.name, handle, ok, tc.handle, tc.ok)
		}
	}
}

func TestConcatRejectsNestedPath(t *testing.T) {
	s := newConcatServer(t, domain.Asset{ID: "a1"}, nil, &fakeConcat{})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/concat/a1/extra", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestConcatSanitizeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"movie", "movie"},
		{"", "video"},
		{`a"b/c\d`, "ab_c_d"},
		{"line\nbreak", "line break"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
