// Package ffmpeg shells out to the ffmpeg binary for slicing, concatenating
// and segmenting media files.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

type Runner struct {
	binary string
}

func New(binary string) *Runner {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Runner{binary: bin}
}

// run executes ffmpeg with the given args. The process inherits ctx, so
// cancelling the context kills a stuck encode. stderr is captured and
// folded into the returned error.
func (r *Runner) run(ctx context.Context, dir string, stdout io.Writer, args ...string) error {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("ffmpeg failed: %w", err)
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(msg, 2000))
	}
	return nil
}

// tail keeps the last n bytes of ffmpeg's stderr, which is where the
// actionable error line lives.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
