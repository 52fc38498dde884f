package apihttp

import (
	"log/slog"
	"net/http"
	"strings"

	"mediastream/internal/domain"
	"mediastream/internal/metrics"
)

// handleConcat streams all parts of an asset as one continuous MP4.
// GET /stream/concat/{assetId}
func (s *Server) handleConcat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	id := domain.AssetID(strings.TrimPrefix(r.URL.Path, "/stream/concat/"))
	if id == "" || strings.Contains(string(id), "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid asset id")
		return
	}

	asset, err := s.getAsset.Execute(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// A single-part asset needs no remux; hand it straight to the range
	// proxy so the client keeps byte ranges, ETag and caching.
	if handle, ok := soleHandle(asset); ok {
		s.streamBlob(w, r, handle)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	// The fragmented output has no fixed length, so range requests cannot
	// be honored on this endpoint.
	w.Header().Set("Accept-Ranges", "none")
	w.Header().Set("Content-Disposition", `inline; filename="`+sanitizeFilename(asset.Title)+`.mp4"`)
	// Length is unknowable up front; the fragmented output streams as
	// chunked transfer encoding.

	counting := &countingWriter{w: w}
	if err := s.concatAsset.Execute(r.Context(), asset, counting); err != nil {
		if counting.n == 0 {
			writeDomainError(w, err)
			return
		}
		// Headers and part of the body are already on the wire; all we can
		// do is log and cut the stream.
		s.logger.Error("concat stream aborted",
			slog.String("asset", string(asset.ID)),
			slog.Int64("bytesSent", counting.n),
			slog.String("error", err.Error()),
		)
		return
	}
	metrics.StreamBytesTotal.WithLabelValues("concat").Add(float64(counting.n))
}

// soleHandle returns the only handle of a non-composite asset, or false
// when the asset has several parts (or none at all).
func soleHandle(asset domain.Asset) (domain.Handle, bool) {
	parts := asset.OrderedParts()
	switch {
	case len(parts) == 1:
		return parts[0].Handle, true
	case len(parts) == 0 && asset.PrimaryHandle != "":
		return asset.PrimaryHandle, true
	}
	return "", false
}

type countingWriter struct {
	w http.ResponseWriter
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	if err == nil {
		if f, ok := cw.w.(http.Flusher); ok {
			f.Flush()
		}
	}
	return n, err
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "video"
	}
	replacer := strings.NewReplacer(`"`, "", "/", "_", "\\", "_", "\n", " ", "\r", " ")
	return replacer.Replace(name)
}
