// Package playlist reads and writes HLS media playlists for fragmented-MP4
// segment runs.
package playlist

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"mediastream/internal/domain"
)

// Parse extracts the segment entries from a media playlist file. Lines it
// does not recognise are ignored.
func Parse(path string) ([]domain.SegmentEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data), nil
}

func ParseBytes(data []byte) []domain.SegmentEntry {
	lines := strings.Split(string(data), "\n")
	var segments []domain.SegmentEntry
	var nextDuration float64

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#EXTINF:") {
			durStr := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.IndexByte(durStr, ','); idx >= 0 {
				durStr = durStr[:idx]
			}
			nextDuration, _ = strconv.ParseFloat(durStr, 64)
		} else if !strings.HasPrefix(line, "#") && line != "" && nextDuration > 0 {
			segments = append(segments, domain.SegmentEntry{
				Filename:        line,
				DurationSeconds: nextDuration,
			})
			nextDuration = 0
		}
	}
	return segments
}

// HasEndList reports whether the playlist file is finalized.
func HasEndList(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), "#EXT-X-ENDLIST")
}

// Write renders a full media playlist to path via a temp file and atomic
// rename, so readers never observe a half-written playlist. finalized adds
// the end marker that tells players the stream is complete.
func Write(path, initSegment string, segments []domain.SegmentEntry, finalized bool) error {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:7\n")
	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", targetDuration(segments)))
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:EVENT\n")
	b.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")
	if initSegment != "" {
		b.WriteString(fmt.Sprintf("#EXT-X-MAP:URI=\"%s\"\n", initSegment))
	}
	for _, seg := range segments {
		b.WriteString(fmt.Sprintf("#EXTINF:%.6f,\n%s\n", seg.DurationSeconds, seg.Filename))
	}
	if finalized {
		b.WriteString("#EXT-X-ENDLIST\n")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func targetDuration(segments []domain.SegmentEntry) int {
	var maxDur float64
	for _, seg := range segments {
		if seg.DurationSeconds > maxDur {
			maxDur = seg.DurationSeconds
		}
	}
	if maxDur == 0 {
		return 1
	}
	return int(math.Ceil(maxDur))
}
