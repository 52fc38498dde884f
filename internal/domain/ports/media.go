package ports

import (
	"context"
	"io"

	"mediastream/internal/domain"
)

// MediaProber reports duration and geometry metadata for a local file.
type MediaProber interface {
	Probe(ctx context.Context, filePath string) (domain.MediaProbe, error)
}

// MediaSlicer cuts one time window out of a local media file.
// CopySlice re-muxes without re-encoding; EncodeSlice re-encodes with
// even-dimension scaling and the probed aspect/rotation metadata
// re-applied.
type MediaSlicer interface {
	CopySlice(ctx context.Context, inPath, outPath string, startSeconds, durationSeconds float64) error
	EncodeSlice(ctx context.Context, inPath, outPath string, startSeconds, durationSeconds float64, meta domain.MediaProbe) error
}

// MediaConcatenator joins ordered local files by re-mux, streaming the
// joined output as it is produced.
type MediaConcatenator interface {
	ToWriter(ctx context.Context, inPaths []string, w io.Writer) error
}

// SegmentSpec controls one segment-encoding pass.
type SegmentSpec struct {
	SegmentSeconds int
	StartNumber    int
	WriteInit      bool // false when extending an existing directory
}

// SegmentEncoder turns a local source file into fixed-duration
// fragmented segments plus a playlist inside dir. It returns the
// segment entries produced, in playback order.
type SegmentEncoder interface {
	EncodeSegments(ctx context.Context, srcPath, dir string, spec SegmentSpec) ([]domain.SegmentEntry, error)
}

// PartFetcher downloads one resolved part to a local path, retrying
// transient failures internally.
type PartFetcher interface {
	Fetch(ctx context.Context, url, destPath string) error
}
