package apihttp

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediastream/internal/domain"
)

func seedManifestDir(t *testing.T, baseDir, name string, modTime time.Time) string {
	t.Helper()
	dir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file := filepath.Join(dir, playlistName)
	if err := os.WriteFile(file, []byte("#EXTM3U\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(file, modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return dir
}

func TestSweepEvictsStaleDirs(t *testing.T) {
	baseDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := newManifestManager(nil, nil, nil, ManifestConfig{BaseDir: baseDir}, logger)

	stale := seedManifestDir(t, baseDir, "old-asset", time.Now().Add(-48*time.Hour))
	fresh := seedManifestDir(t, baseDir, "fresh-asset", time.Now())

	m.sweep(24*time.Hour, logger)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale dir not evicted")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh dir must survive: %v", err)
	}
}

func TestSweepSkipsRunningJobs(t *testing.T) {
	baseDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := newManifestManager(nil, nil, nil, ManifestConfig{BaseDir: baseDir}, logger)

	dir := seedManifestDir(t, baseDir, "busy-asset", time.Now().Add(-48*time.Hour))
	m.jobs[domain.AssetID("busy-asset")] = &manifestJob{assetID: "busy-asset", dir: dir}

	m.sweep(24*time.Hour, logger)

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("dir with running job must survive: %v", err)
	}
}

func TestSweepMissingBaseDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := newManifestManager(nil, nil, nil, ManifestConfig{BaseDir: filepath.Join(t.TempDir(), "nope")}, logger)
	// Must not panic or log an error for a base dir that does not exist yet.
	m.sweep(time.Hour, logger)
}

func TestDeliveryHealth(t *testing.T) {
	s := NewServer(fixedGetAsset{})
	t.Cleanup(s.Close)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/internal/health/delivery", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var health deliveryHealth
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" {
		t.Fatalf("status field %q", health.Status)
	}
}
