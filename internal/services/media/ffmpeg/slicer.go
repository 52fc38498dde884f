package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mediastream/internal/domain"
)

// CopySlice cuts [start, start+duration) out of src without re-encoding.
// The output is written to a temp file and renamed into place so a failed
// run never leaves a truncated part behind.
func (r *Runner) CopySlice(ctx context.Context, src, dst string, start, duration float64) error {
	tmp := tmpName(dst)
	err := r.run(ctx, "", nil,
		"-y",
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(duration),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		tmp,
	)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// EncodeSlice cuts the same window but re-encodes the streams. Square
// pixels are restored for anamorphic sources and the display aspect and
// rotation metadata of the original are carried over, so players render
// the slice the same way they rendered the whole file.
func (r *Runner) EncodeSlice(ctx context.Context, src, dst string, start, duration float64, probe domain.MediaProbe) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(duration),
		"-vf", scaleFilter(probe),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
	}
	if probe.DisplayAspectRatio != "" {
		args = append(args, "-aspect", probe.DisplayAspectRatio)
	}
	if probe.Rotation != 0 {
		args = append(args, "-metadata:s:v:0", "rotate="+strconv.Itoa(probe.Rotation))
	}

	tmp := tmpName(dst)
	args = append(args, tmp)
	if err := r.run(ctx, "", nil, args...); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// scaleFilter keeps both dimensions even for libx264. Anamorphic sources
// get their sample aspect baked into the width and reset to 1:1.
func scaleFilter(probe domain.MediaProbe) string {
	if sar := probe.SampleAspectRatio; sar != "" && sar != "1:1" {
		return "scale=trunc(iw*sar/2)*2:trunc(ih/2)*2,setsar=1"
	}
	return "scale=trunc(iw/2)*2:trunc(ih/2)*2"
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func tmpName(dst string) string {
	dir := filepath.Dir(dst)
	base := filepath.Base(dst)
	ext := filepath.Ext(base)
	return filepath.Join(dir, fmt.Sprintf("%s.tmp%s", strings.TrimSuffix(base, ext), ext))
}
