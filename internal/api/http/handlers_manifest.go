package apihttp

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"mediastream/internal/domain"
)

// manifestReadyTimeout bounds how long a playlist request waits for the
// quick-start budget of a fresh job.
const manifestReadyTimeout = 120 * time.Second

var segmentNamePattern = regexp.MustCompile(`^seg-\d{5}\.m4s$`)

// handleManifest serves playlist, init and media segments for an asset,
// kicking off manifest generation on first access.
// GET /manifest/{assetId}/{filename}
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/manifest/")
	id, filename, ok := strings.Cut(rest, "/")
	if !ok || id == "" || filename == "" || strings.Contains(filename, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "expected /manifest/{assetId}/{filename}")
		return
	}
	if !validManifestFilename(filename) {
		writeError(w, http.StatusNotFound, "not_found", "no such manifest file")
		return
	}

	asset, err := s.getAsset.Execute(r.Context(), domain.AssetID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	job := s.manifests.Ensure(asset)
	waitCtx, cancel := context.WithTimeout(r.Context(), manifestReadyTimeout)
	defer cancel()
	if err := s.manifests.WaitReady(waitCtx, job); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "manifest_timeout", "manifest not ready in time")
			return
		}
		// A failed extension run may still have left a servable playlist
		// behind; surface the error only when nothing is on disk.
		if _, statErr := os.Stat(job.playlist); statErr != nil {
			writeDomainError(w, err)
			return
		}
	}

	path := filepath.Join(job.dir, filename)
	f, err := os.Open(path)
	if err != nil {
		// Segment beyond what the background extension has produced yet.
		writeError(w, http.StatusNotFound, "not_found", "no such manifest file")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	w.Header().Set("Content-Type", fallbackContentType(filepath.Ext(filename)))
	if filename == playlistName {
		// The playlist mutates while the extension runs; never let a
		// player cache a stale, shorter one.
		w.Header().Set("Cache-Control", "no-store")
	} else {
		// Segments are immutable once written.
		w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	}
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

func validManifestFilename(name string) bool {
	if name == playlistName || name == InitSegmentRef {
		return true
	}
	return segmentNamePattern.MatchString(name)
}
