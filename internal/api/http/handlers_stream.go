package apihttp

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"mediastream/internal/domain"
	"mediastream/internal/metrics"
)

// handleStream proxies byte ranges of a hosted file to the client.
// GET /stream/{handle}
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	handle := domain.Handle(strings.TrimPrefix(r.URL.Path, "/stream/"))
	if handle == "" || strings.Contains(string(handle), "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid handle")
		return
	}
	s.streamBlob(w, r, handle)
}

// streamBlob resolves the handle and proxies the blob, honoring a single
// byte range when the host reported a size. handleConcat reuses it for
// single-part assets, which need no remux.
func (s *Server) streamBlob(w http.ResponseWriter, r *http.Request, handle domain.Handle) {
	etag := handleETag(handle)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.Header().Set("ETag", `"`+etag+`"`)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	loc, err := s.resolver.Resolve(r.Context(), handle)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	size := loc.SizeBytes

	// A malformed Range header degrades to a full-file response instead of
	// an error; players send some strange ones. When the host did not
	// report a size, Range is ignored outright and the body streams to
	// upstream EOF.
	start, end := int64(0), size-1
	partial := false
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" && size > 0 {
		rs, re, rangeErr := parseByteRange(rangeHeader, size)
		switch {
		case rangeErr == nil:
			start, end, partial = rs, re, true
		case errors.Is(rangeErr, errRangeNotSatisfiable):
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			writeError(w, http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable", "requested range not satisfiable")
			return
		}
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, loc.URL, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if size > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	}

	resp, err := s.upstream.Do(req)
	if err != nil {
		s.logger.Warn("upstream fetch failed", slog.String("handle", string(handle)), slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "upstream_error", "upstream fetch failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		s.logger.Warn("upstream returned unexpected status",
			slog.String("handle", string(handle)), slog.Int("status", resp.StatusCode))
		writeError(w, http.StatusBadGateway, "upstream_error", "upstream fetch failed")
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = fallbackContentType(filepath.Ext(loc.URL))
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("ETag", `"`+etag+`"`)
	if size > 0 {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	}
	if partial {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if r.Method == http.MethodHead {
		return
	}

	sent := copyChunked(w, resp.Body, chunkSizeForECT(r.Header.Get("ECT")))
	metrics.StreamBytesTotal.WithLabelValues("stream").Add(float64(sent))
}

// copyChunked copies src to dst in fixed-size chunks, flushing after every
// chunk so bytes reach slow clients as they arrive.
func copyChunked(dst http.ResponseWriter, src io.Reader, chunkSize int) int64 {
	flusher, _ := dst.(http.Flusher)
	buf := make([]byte, chunkSize)
	var total int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			written, writeErr := dst.Write(buf[:n])
			total += int64(written)
			if writeErr != nil {
				return total
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			return total
		}
	}
}

// handleETag derives a stable validator from the handle alone; hosted
// blobs are immutable, so the handle fully identifies the content.
func handleETag(handle domain.Handle) string {
	sum := md5.Sum([]byte(handle))
	return hex.EncodeToString(sum[:])
}
