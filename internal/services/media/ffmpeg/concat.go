package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ToWriter concatenates the input files in order and streams the result to
// w as a fragmented MP4, which players accept without a seekable index.
func (r *Runner) ToWriter(ctx context.Context, files []string, w io.Writer) error {
	list, cleanup, err := writeConcatList(files)
	if err != nil {
		return err
	}
	defer cleanup()

	return r.run(ctx, "", w,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-c", "copy",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"pipe:1",
	)
}

// writeConcatList renders the concat demuxer's input list to a temp file.
func writeConcatList(files []string) (path string, cleanup func(), err error) {
	if len(files) == 0 {
		return "", nil, fmt.Errorf("concat: no input files")
	}
	var b strings.Builder
	for _, f := range files {
		abs, absErr := filepath.Abs(f)
		if absErr != nil {
			return "", nil, absErr
		}
		// Single quotes inside the path terminate the quoted string and
		// reopen it after an escaped quote, per the demuxer's syntax.
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}

	tmp, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return "", nil, err
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}
