package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"mediastream/internal/domain/ports"
)

// maxSplitDepth bounds how many times an oversized part may be re-split.
// The level before the cap forces a re-encode so the slice actually shrinks
// instead of looping forever on an incompressible stream copy.
const maxSplitDepth = 4

type SplitVideo struct {
	Prober ports.MediaProber
	Slicer ports.MediaSlicer
	Logger *slog.Logger
}

type SplitVideoInput struct {
	FilePath    string
	BudgetBytes int64
	// Transcode forces a re-encode of every slice instead of a stream copy.
	Transcode bool
}

// Execute splits the input file into parts that each fit BudgetBytes.
// A file already within budget is returned as a single-element slice
// pointing at the original path. Produced part files live next to the
// input, named <base>_partN<ext> with N starting at 1.
func (uc SplitVideo) Execute(ctx context.Context, input SplitVideoInput) ([]string, error) {
	if input.BudgetBytes <= 0 {
		return nil, fmt.Errorf("%w: non-positive part budget", ErrEncodeFailed)
	}
	return uc.split(ctx, input.FilePath, input.BudgetBytes, input.Transcode, 0)
}

func (uc SplitVideo) split(ctx context.Context, path string, budget int64, transcode bool, depth int) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, wrapEncode(err)
	}
	if info.Size() <= budget {
		return []string{path}, nil
	}
	if depth >= maxSplitDepth {
		return nil, fmt.Errorf("%w: part still exceeds budget after %d splits", ErrEncodeFailed, depth)
	}

	probe, err := uc.Prober.Probe(ctx, path)
	if err != nil {
		return nil, wrapEncode(err)
	}
	if probe.DurationSeconds <= 0 {
		return nil, fmt.Errorf("%w: zero duration for %s", ErrEncodeFailed, filepath.Base(path))
	}

	numParts := int(math.Ceil(float64(info.Size()) / float64(budget)))
	partDuration := probe.DurationSeconds / float64(numParts)

	// Re-splitting at the last allowed level means stream copy did not
	// shrink the file, so force an encode for every slice here.
	encode := transcode || depth == maxSplitDepth-1

	base, ext := splitExt(path)
	parts := make([]string, 0, numParts)
	for i := 0; i < numParts; i++ {
		start := float64(i) * partDuration
		out := fmt.Sprintf("%s_part%d%s", base, i+1, ext)

		sliceErr := error(nil)
		if encode {
			sliceErr = uc.Slicer.EncodeSlice(ctx, path, out, start, partDuration, probe)
		} else {
			sliceErr = uc.Slicer.CopySlice(ctx, path, out, start, partDuration)
			if sliceErr != nil {
				uc.log().Warn("stream copy failed, retrying slice with encode",
					"file", filepath.Base(path), "part", i+1, "err", sliceErr)
				sliceErr = uc.Slicer.EncodeSlice(ctx, path, out, start, partDuration, probe)
			}
		}
		if sliceErr != nil {
			removeFiles(parts)
			return nil, wrapEncode(sliceErr)
		}
		parts = append(parts, out)
	}

	// Verify each part against the budget and re-split the stragglers.
	final := make([]string, 0, len(parts))
	for _, part := range parts {
		st, statErr := os.Stat(part)
		if statErr != nil {
			removeFiles(final)
			return nil, wrapEncode(statErr)
		}
		if st.Size() <= budget {
			final = append(final, part)
			continue
		}
		uc.log().Info("part exceeds budget, re-splitting",
			"part", filepath.Base(part), "size", st.Size(), "budget", budget, "depth", depth+1)
		sub, subErr := uc.split(ctx, part, budget, false, depth+1)
		if subErr != nil {
			removeFiles(final)
			return nil, subErr
		}
		os.Remove(part)
		final = append(final, sub...)
	}
	return final, nil
}

func (uc SplitVideo) log() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}

func splitExt(path string) (base, ext string) {
	ext = filepath.Ext(path)
	return strings.TrimSuffix(path, ext), ext
}

func removeFiles(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}

// PartDurations probes every produced part and returns its duration.
// Probe failures degrade to a zero duration rather than failing the whole
// ingest; the value is informational on the stored asset.
func PartDurations(ctx context.Context, prober ports.MediaProber, paths []string) []float64 {
	out := make([]float64, len(paths))
	for i, p := range paths {
		probe, err := prober.Probe(ctx, p)
		if err != nil {
			continue
		}
		out[i] = probe.DurationSeconds
	}
	return out
}
