// Package ffprobe inspects media files through the ffprobe binary.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"mediastream/internal/domain"
)

type Prober struct {
	binary string
}

func New(binary string) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{binary: bin}
}

const maxProbeTimeout = 30 * time.Second

func (p *Prober) Probe(ctx context.Context, filePath string) (domain.MediaProbe, error) {
	path := strings.TrimSpace(filePath)
	if path == "" {
		return domain.MediaProbe{}, errors.New("file path is required")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxProbeTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-probesize", "100M",
		"-analyzeduration", "100M",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	probe, parseErr := parseProbeOutput(stdout.Bytes())
	if parseErr != nil {
		if runErr != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				return domain.MediaProbe{}, fmt.Errorf("ffprobe failed: %w", runErr)
			}
			return domain.MediaProbe{}, fmt.Errorf("ffprobe failed: %w: %s", runErr, msg)
		}
		return domain.MediaProbe{}, fmt.Errorf("ffprobe output parse failed: %w", parseErr)
	}

	// ffprobe can exit non-zero for files with damaged trailers and still
	// emit usable format metadata. Keep it if the duration parsed.
	if runErr != nil && probe.DurationSeconds == 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return domain.MediaProbe{}, fmt.Errorf("ffprobe failed: %w", runErr)
		}
		return domain.MediaProbe{}, fmt.Errorf("ffprobe failed: %w: %s", runErr, msg)
	}

	return probe, nil
}

// probePayload is the subset of ffprobe JSON output we parse.
type probePayload struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType          string            `json:"codec_type"`
	SampleAspectRatio  string            `json:"sample_aspect_ratio"`
	DisplayAspectRatio string            `json:"display_aspect_ratio"`
	Tags               map[string]string `json:"tags"`
	SideData           []probeSideData   `json:"side_data_list"`
}

type probeSideData struct {
	Rotation int `json:"rotation"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

func parseProbeOutput(data []byte) (domain.MediaProbe, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.MediaProbe{}, err
	}

	var probe domain.MediaProbe
	if payload.Format.Duration != "" {
		if d, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil && d > 0 {
			probe.DurationSeconds = d
		}
	}

	for _, stream := range payload.Streams {
		if stream.CodecType != "video" {
			continue
		}
		probe.SampleAspectRatio = normaliseRatio(stream.SampleAspectRatio)
		probe.DisplayAspectRatio = normaliseRatio(stream.DisplayAspectRatio)
		if r, ok := stream.Tags["rotate"]; ok {
			if deg, err := strconv.Atoi(strings.TrimSpace(r)); err == nil {
				probe.Rotation = deg
			}
		}
		if probe.Rotation == 0 {
			for _, sd := range stream.SideData {
				if sd.Rotation != 0 {
					probe.Rotation = sd.Rotation
					break
				}
			}
		}
		break
	}
	return probe, nil
}

// normaliseRatio drops the placeholder ratios ffprobe emits for streams
// without aspect metadata.
func normaliseRatio(r string) string {
	r = strings.TrimSpace(r)
	if r == "" || r == "0:1" || r == "0:0" {
		return ""
	}
	return r
}
