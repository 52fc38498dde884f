package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"mediastream/internal/domain"
	"mediastream/internal/domain/ports"
	"mediastream/internal/metrics"
	"mediastream/internal/services/media/playlist"
)

const (
	InitSegmentName = "init.mp4"
	// discardInitName receives the init segment ffmpeg insists on writing
	// for continuation runs, where the real init.mp4 must stay untouched.
	discardInitName = ".init-discard.mp4"
	// workPlaylistName is ffmpeg's own playlist output. It only describes
	// one run, so it is parsed for segment durations and discarded; the
	// playlist served to clients is assembled elsewhere across runs.
	workPlaylistName = ".work.m3u8"
)

// EncodeSegments segments input into fragmented-MP4 pieces inside dir and
// returns the produced segment entries in playback order. Stream copy is
// tried first; sources whose codecs cannot be carried into fMP4 are
// re-encoded.
func (r *Runner) EncodeSegments(ctx context.Context, input, dir string, spec ports.SegmentSpec) ([]domain.SegmentEntry, error) {
	started := time.Now()
	defer func() {
		metrics.SegmentEncodeDuration.Observe(time.Since(started).Seconds())
	}()

	if err := r.segment(ctx, input, dir, spec, false); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if encErr := r.segment(ctx, input, dir, spec, true); encErr != nil {
			return nil, fmt.Errorf("segment: copy: %v; encode: %w", err, encErr)
		}
	}

	workPath := filepath.Join(dir, workPlaylistName)
	defer os.Remove(workPath)
	entries, err := playlist.Parse(workPath)
	if err != nil {
		return nil, fmt.Errorf("segment: read produced playlist: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("segment: no segments produced for %s", filepath.Base(input))
	}
	return entries, nil
}

func (r *Runner) segment(ctx context.Context, input, dir string, spec ports.SegmentSpec, encode bool) error {
	initName := InitSegmentName
	if !spec.WriteInit {
		initName = discardInitName
		defer os.Remove(filepath.Join(dir, discardInitName))
	}

	args := []string{"-y", "-i", input}
	if encode {
		args = append(args,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-crf", "23",
			"-c:a", "aac",
			"-b:a", "128k",
			"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", spec.SegmentSeconds),
		)
	} else {
		args = append(args, "-c", "copy")
	}
	args = append(args,
		"-f", "hls",
		"-hls_time", strconv.Itoa(spec.SegmentSeconds),
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_segment_type", "fmp4",
		"-hls_fmp4_init_filename", initName,
		"-start_number", strconv.Itoa(spec.StartNumber),
		"-hls_segment_filename", "seg-%05d.m4s",
		workPlaylistName,
	)
	return r.run(ctx, dir, nil, args...)
}
