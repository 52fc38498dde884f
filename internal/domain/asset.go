package domain

import (
	"sort"
	"strings"
	"time"
)

// Handle is the opaque identifier of one immutable blob at the content
// host. The host never reuses a handle for different bytes, which is what
// makes handle-derived ETags safe.
type Handle string

// AssetID identifies one logical video in the metadata store.
type AssetID string

// Part is one ordered piece of a composite asset. Index is 1-based and
// defines playback order.
type Part struct {
	Index           int
	Handle          Handle
	DurationSeconds float64
}

// Asset is one logical video: a single handle, or an ordered list of
// parts produced by the upload-time splitter. For composite assets the
// first part's handle is mirrored into PrimaryHandle for lookups, but
// playback always walks Parts in index order.
type Asset struct {
	ID                   AssetID
	Title                string
	PrimaryHandle        Handle
	Parts                []Part
	TotalDurationSeconds float64
	SizeBytes            int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Composite reports whether the asset is split across multiple parts.
func (a Asset) Composite() bool {
	return len(a.Parts) > 1
}

// OrderedParts returns the parts sorted by index with empty handles
// dropped. Index order is preserved even when indices are sparse.
func (a Asset) OrderedParts() []Part {
	parts := make([]Part, 0, len(a.Parts))
	for _, p := range a.Parts {
		if strings.TrimSpace(string(p.Handle)) == "" {
			continue
		}
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Index < parts[j].Index })
	return parts
}

// Validate checks the invariants enforced at the metadata-store
// boundary: a primary handle or at least one part, unique part indices.
func (a Asset) Validate() error {
	if strings.TrimSpace(string(a.PrimaryHandle)) == "" && len(a.OrderedParts()) == 0 {
		return ErrInvalidAsset
	}
	seen := make(map[int]struct{}, len(a.Parts))
	for _, p := range a.Parts {
		if p.Index <= 0 {
			return ErrInvalidAsset
		}
		if _, dup := seen[p.Index]; dup {
			return ErrInvalidAsset
		}
		seen[p.Index] = struct{}{}
	}
	return nil
}

// ResolvedLocation is the short-lived result of resolving a handle at
// the content host. It is derived, cached state — never authoritative.
type ResolvedLocation struct {
	URL        string
	SizeBytes  int64 // 0 when the host did not report a size
	ResolvedAt time.Time
}

// MediaProbe carries the stream metadata the splitter needs to preserve
// playback geometry across a re-encode.
type MediaProbe struct {
	DurationSeconds    float64
	SampleAspectRatio  string
	DisplayAspectRatio string
	Rotation           int // degrees, 0 when absent
}

// PlaylistKind is the lifecycle stage of a generated manifest.
// Transitions only run forward: in-progress -> finalized.
type PlaylistKind string

const (
	PlaylistInProgress PlaylistKind = "in-progress"
	PlaylistFinalized  PlaylistKind = "finalized"
)

// SegmentEntry is one produced segment file with its media duration, as
// referenced from a playlist.
type SegmentEntry struct {
	Filename        string  `json:"filename"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// ManifestState is the persisted per-asset record of a generated
// segment directory.
type ManifestState struct {
	Dir           string         `json:"dir"`
	InitSegment   string         `json:"initSegment"`
	Segments      []SegmentEntry `json:"segments"`
	PlaylistKind  PlaylistKind   `json:"playlistKind"`
	PartsConsumed int            `json:"partsConsumed"`
	TotalParts    int            `json:"totalParts"`
}
