package apihttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"mediastream/internal/domain"
	"mediastream/internal/domain/ports"
	"mediastream/internal/metrics"
	"mediastream/internal/services/media/playlist"
)

const (
	playlistName  = "index.m3u8"
	stateFileName = "state.json"
)

// ManifestConfig carries the tunables for manifest generation.
type ManifestConfig struct {
	// BaseDir is where per-asset manifest directories live.
	BaseDir string
	// TmpDir receives downloaded part files while they are segmented.
	TmpDir string
	// SegmentSeconds is the target duration of one fMP4 segment.
	SegmentSeconds int
	// QuickStartParts is how many leading parts are segmented before the
	// playlist is considered ready to serve.
	QuickStartParts int
}

func (c *ManifestConfig) applyDefaults() {
	if c.SegmentSeconds <= 0 {
		c.SegmentSeconds = 2
	}
	if c.QuickStartParts <= 0 {
		c.QuickStartParts = 5
	}
	if c.BaseDir == "" {
		c.BaseDir = filepath.Join(os.TempDir(), "manifests")
	}
}

type manifestJob struct {
	assetID   domain.AssetID
	dir       string
	playlist  string
	statePath string

	ready     chan struct{}
	readyOnce sync.Once
	startOnce sync.Once
	cancel    context.CancelFunc

	mu    sync.Mutex
	err   error
	state domain.ManifestState
}

func (j *manifestJob) signalReady() {
	j.readyOnce.Do(func() { close(j.ready) })
}

func (j *manifestJob) failure() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *manifestJob) setErr(err error) {
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
}

// ManifestManager generates and extends HLS-style manifests, one job per
// asset at a time. A second request for an asset whose job is running
// attaches to the running job instead of starting another.
type ManifestManager struct {
	resolver ports.HandleResolver
	fetcher  ports.PartFetcher
	encoder  ports.SegmentEncoder
	cfg      ManifestConfig
	logger   *slog.Logger
	// events receives job lifecycle notifications for the WebSocket hub.
	events func(event string, data interface{})

	mu   sync.Mutex
	jobs map[domain.AssetID]*manifestJob

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func newManifestManager(resolver ports.HandleResolver, fetcher ports.PartFetcher, encoder ports.SegmentEncoder, cfg ManifestConfig, logger *slog.Logger) *ManifestManager {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &ManifestManager{
		resolver:   resolver,
		fetcher:    fetcher,
		encoder:    encoder,
		cfg:        cfg,
		logger:     logger,
		events:     func(string, interface{}) {},
		jobs:       make(map[domain.AssetID]*manifestJob),
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

func (m *ManifestManager) setEventSink(fn func(event string, data interface{})) {
	if fn != nil {
		m.events = fn
	}
}

// Ensure returns the job for the asset, starting generation if no
// finalized manifest exists on disk and no job is running.
func (m *ManifestManager) Ensure(asset domain.Asset) *manifestJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.jobs[asset.ID]; ok {
		return job
	}

	dir := filepath.Join(m.cfg.BaseDir, string(asset.ID))
	job := &manifestJob{
		assetID:   asset.ID,
		dir:       dir,
		playlist:  filepath.Join(dir, playlistName),
		statePath: filepath.Join(dir, stateFileName),
		ready:     make(chan struct{}),
	}
	m.jobs[asset.ID] = job

	if playlist.HasEndList(job.playlist) {
		// Finalized manifest already on disk; nothing to run.
		job.signalReady()
		return job
	}

	job.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(m.rootCtx)
		job.cancel = cancel
		go m.run(ctx, job, asset)
	})
	return job
}

// WaitReady blocks until the job's quick-start budget is on disk, the job
// failed, or the caller gave up.
func (m *ManifestManager) WaitReady(ctx context.Context, job *manifestJob) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-job.ready:
		return job.failure()
	}
}

func (m *ManifestManager) run(ctx context.Context, job *manifestJob, asset domain.Asset) {
	metrics.ManifestJobStartsTotal.Inc()
	metrics.ManifestActiveJobs.Inc()
	defer metrics.ManifestActiveJobs.Dec()

	if err := m.generate(ctx, job, asset); err != nil {
		metrics.ManifestJobFailuresTotal.Inc()
		m.logger.Error("manifest job failed",
			slog.String("asset", string(asset.ID)),
			slog.String("error", err.Error()),
		)
		job.setErr(err)
		m.events("manifest_failed", manifestEvent{AssetID: asset.ID, Error: err.Error()})
		job.signalReady()
		// Drop the failed job so a later request can retry from the
		// persisted state.
		m.remove(job)
		return
	}

	m.events("manifest_finished", manifestEvent{AssetID: asset.ID})
	job.signalReady()
	m.remove(job)
}

func (m *ManifestManager) generate(ctx context.Context, job *manifestJob, asset domain.Asset) error {
	parts := asset.OrderedParts()
	if len(parts) == 0 {
		if asset.PrimaryHandle == "" {
			return domain.ErrNoParts
		}
		parts = []domain.Part{{Index: 1, Handle: asset.PrimaryHandle}}
	}

	if err := os.MkdirAll(job.dir, 0o755); err != nil {
		return err
	}

	state, err := m.loadState(job)
	if err != nil {
		m.logger.Warn("manifest state unreadable, regenerating",
			slog.String("asset", string(asset.ID)), slog.String("error", err.Error()))
		state = domain.ManifestState{}
	}
	state.Dir = job.dir
	state.TotalParts = len(parts)
	if state.PartsConsumed > len(parts) {
		state.PartsConsumed = 0
		state.Segments = nil
	}

	quickStart := m.cfg.QuickStartParts
	if quickStart > len(parts) {
		quickStart = len(parts)
	}
	if state.PartsConsumed >= quickStart {
		job.signalReady()
	}

	m.events("manifest_started", manifestEvent{
		AssetID:    asset.ID,
		TotalParts: len(parts),
		Resumed:    state.PartsConsumed > 0,
	})

	for state.PartsConsumed < len(parts) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		part := parts[state.PartsConsumed]
		if err := m.consumePart(ctx, job, &state, part); err != nil {
			return fmt.Errorf("part %d: %w", part.Index, err)
		}

		state.PlaylistKind = domain.PlaylistInProgress
		if state.PartsConsumed == len(parts) {
			state.PlaylistKind = domain.PlaylistFinalized
		}
		if err := m.writeOutputs(job, state); err != nil {
			return err
		}

		m.events("manifest_progress", manifestEvent{
			AssetID:       asset.ID,
			PartsConsumed: state.PartsConsumed,
			TotalParts:    state.TotalParts,
			Segments:      len(state.Segments),
		})

		if state.PartsConsumed >= quickStart {
			job.signalReady()
		}
	}

	// A previous run may have consumed every part but died before the
	// end marker landed; make the finalized playlist the last word.
	if state.PlaylistKind != domain.PlaylistFinalized {
		state.PlaylistKind = domain.PlaylistFinalized
		if err := m.writeOutputs(job, state); err != nil {
			return err
		}
	}
	return nil
}

// consumePart downloads one part, segments it and folds the produced
// segments into the state. The downloaded part file is always removed.
func (m *ManifestManager) consumePart(ctx context.Context, job *manifestJob, state *domain.ManifestState, part domain.Part) error {
	loc, err := m.resolver.Resolve(ctx, part.Handle)
	if err != nil {
		return err
	}

	local := filepath.Join(job.dir, fmt.Sprintf(".part-%05d", part.Index))
	if err := m.fetcher.Fetch(ctx, loc.URL, local); err != nil {
		return err
	}
	defer os.Remove(local)

	spec := ports.SegmentSpec{
		SegmentSeconds: m.cfg.SegmentSeconds,
		StartNumber:    len(state.Segments),
		WriteInit:      len(state.Segments) == 0,
	}
	entries, err := m.encoder.EncodeSegments(ctx, local, job.dir, spec)
	if err != nil {
		return err
	}
	if spec.WriteInit {
		state.InitSegment = InitSegmentRef
	}
	state.Segments = append(state.Segments, entries...)
	state.PartsConsumed++
	return nil
}

// InitSegmentRef is the init segment filename referenced from playlists.
const InitSegmentRef = "init.mp4"

func (m *ManifestManager) writeOutputs(job *manifestJob, state domain.ManifestState) error {
	finalized := state.PlaylistKind == domain.PlaylistFinalized
	if err := playlist.Write(job.playlist, state.InitSegment, state.Segments, finalized); err != nil {
		return err
	}
	return m.saveState(job, state)
}

func (m *ManifestManager) loadState(job *manifestJob) (domain.ManifestState, error) {
	data, err := os.ReadFile(job.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ManifestState{}, nil
		}
		return domain.ManifestState{}, err
	}
	var state domain.ManifestState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.ManifestState{}, err
	}
	return state, nil
}

func (m *ManifestManager) saveState(job *manifestJob, state domain.ManifestState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp := job.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, job.statePath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (m *ManifestManager) remove(job *manifestJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.jobs[job.assetID]; ok && current == job {
		delete(m.jobs, job.assetID)
	}
}

func (m *ManifestManager) activeJobs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// shutdown cancels every running job.
func (m *ManifestManager) shutdown() {
	m.rootCancel()
}

type manifestEvent struct {
	AssetID       domain.AssetID `json:"assetId"`
	TotalParts    int            `json:"totalParts,omitempty"`
	PartsConsumed int            `json:"partsConsumed,omitempty"`
	Segments      int            `json:"segments,omitempty"`
	Resumed       bool           `json:"resumed,omitempty"`
	Error         string         `json:"error,omitempty"`
}
